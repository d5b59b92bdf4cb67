package config

// Application constants
const (
	AppName    = "evalpanel"
	AppVersion = "1.0.0"

	// EnvPrefix namespaces every environment variable
	EnvPrefix = "PANEL"

	// Output file names written to paths.output_dir
	PanelFileName          = "panel.csv"
	SelectionCSVFileName   = "selection.csv"
	SelectionXLSXFileName  = "selection.xlsx"
	SelectionLaTeXFileName = "selection.tex"
	ManifestFileName       = "manifest.json"
)
