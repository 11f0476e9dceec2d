// internal/platform/ui/colors.go
package ui

import "github.com/pterm/pterm"

// Paleta de la CLI
var (
	// Signal - headers y elementos destacados
	Signal = pterm.NewRGB(0, 173, 216)

	// Alert - errores y probes fallidos
	Alert = pterm.NewRGB(215, 38, 56)

	// Amber - advertencias y outcomes tardíos
	Amber = pterm.NewRGB(255, 182, 39)

	// Slate - texto secundario
	Slate = pterm.NewRGB(120, 120, 120)

	// Mint - outcomes exitosos
	Mint = pterm.NewRGB(46, 204, 113)
)

// Estilos preconfigurados
var (
	StylePrimary   = Signal.ToRGBStyle()
	StyleSuccess   = Mint.ToRGBStyle()
	StyleWarning   = Amber.ToRGBStyle()
	StyleError     = Alert.ToRGBStyle()
	StyleSecondary = Slate.ToRGBStyle()
)
