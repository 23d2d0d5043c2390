package generation

// Settings are the user-tunable generation defaults, loaded from the
// config file and injected into each model.
type Settings struct {
	SelectionGrow     int  `mapstructure:"selectionGrow"`    // percent of selection size
	SelectionFeather  int  `mapstructure:"selectionFeather"` // percent
	SelectionPadding  int  `mapstructure:"selectionPadding"` // percent
	BatchSize         int  `mapstructure:"batchSize"`
	AutoPreview       bool `mapstructure:"autoPreview"`
	NewSeedAfterApply bool `mapstructure:"newSeedAfterApply"`
}

func DefaultSettings() *Settings {
	return &Settings{
		SelectionGrow:    5,
		SelectionFeather: 5,
		SelectionPadding: 7,
		BatchSize:        4,
		AutoPreview:      true,
	}
}
