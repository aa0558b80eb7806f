package policy

import (
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/mealguard/internal/model"
)

func FuzzLoadConfigYAML(f *testing.F) {
	def, _ := DefaultConfigYAML()
	f.Add([]byte(def))
	f.Add([]byte(`fallback: general
conditions:
  general:
    carb_ranges:
      lunch: {min: 0, max: 60}
`))
	f.Add([]byte{})
	f.Add([]byte(`{{{not yaml at all`))

	f.Fuzz(func(t *testing.T, data []byte) {
		cfg := DefaultConfig()
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return
		}
		if cfg.Validate() != nil {
			return
		}
		// A valid config must derive a usable range for every meal type.
		cs := cfg.Derive(model.ConditionProfile{Condition: model.ConditionType2})
		for _, mt := range model.MealTypes {
			r, ok := cs.RangeFor(mt)
			if !ok || r.Min > r.Max {
				t.Fatalf("invalid %s range %+v", mt, r)
			}
		}
	})
}
