package recurrence

// Unit is the calendar unit a rule advances a due date by.
type Unit string

const (
	Day   Unit = "day"
	Week  Unit = "week"
	Month Unit = "month"
	Year  Unit = "year"
)

// NoneKey identifies the rule that means "do not recur".
const NoneKey = "none"

// Rule describes how far to roll a due date forward.
type Rule struct {
	Key     string `mapstructure:"key" yaml:"key" json:"key" validate:"required"`
	LabelEn string `mapstructure:"label_en" yaml:"label_en" json:"label_en"`
	LabelFa string `mapstructure:"label_fa" yaml:"label_fa" json:"label_fa"`
	Amount  int    `mapstructure:"amount" yaml:"amount" json:"amount" validate:"gte=0"`
	Unit    Unit   `mapstructure:"unit" yaml:"unit" json:"unit" validate:"oneof=day week month year"`
	Enabled bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
}

// IsNone reports whether the rule is the "do not recur" sentinel.
func (r Rule) IsNone() bool {
	return r.Key == NoneKey
}

// Valid reports whether u is one of the supported units.
func (u Unit) Valid() bool {
	switch u {
	case Day, Week, Month, Year:
		return true
	}
	return false
}

// DefaultRules returns a fresh copy of the built-in rule set.
func DefaultRules() []Rule {
	return []Rule{
		{Key: NoneKey, LabelEn: "None", LabelFa: "هیچ", Amount: 0, Unit: Day, Enabled: true},
		{Key: "daily", LabelEn: "Daily", LabelFa: "هر روز", Amount: 1, Unit: Day, Enabled: true},
		{Key: "weekly", LabelEn: "Weekly", LabelFa: "هر هفته", Amount: 1, Unit: Week, Enabled: true},
		{Key: "biweekly", LabelEn: "Every 2 Weeks", LabelFa: "هر 2 هفته", Amount: 2, Unit: Week, Enabled: true},
		{Key: "monthly", LabelEn: "Monthly", LabelFa: "هر ماه", Amount: 1, Unit: Month, Enabled: true},
		{Key: "quarterly", LabelEn: "Every 4 Months", LabelFa: "هر 4 ماه", Amount: 4, Unit: Month, Enabled: true},
		{Key: "yearly", LabelEn: "Yearly", LabelFa: "هر سال", Amount: 1, Unit: Year, Enabled: true},
	}
}
