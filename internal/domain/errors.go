package domain

import "errors"

var (
	ErrNotFound            = errors.New("no encontrado")
	ErrEmptyCart           = errors.New("carrito vacío")
	ErrInvalidQuantity     = errors.New("cantidad inválida")
	ErrIllegalTransition   = errors.New("transición de checkout inválida")
	ErrNoActiveIntent      = errors.New("no hay intento de pago activo")
	ErrGatewayUnavailable  = errors.New("proveedor de pagos no disponible")
	ErrVerifierUnavailable = errors.New("verificación de pago no disponible")
	// ErrStorageFull: el storage de la sesión no admite más datos (ej. límite de cookie).
	ErrStorageFull = errors.New("almacenamiento de sesión lleno")
)
