package profile

import "fmt"

// InitProfile returns a commented YAML starter template for a new profile.
func InitProfile(name string) string {
	return fmt.Sprintf(`name: %s
description: Custom condition profile

# Condition selects the policy table.
# Built-in: type1_diabetes, type2_diabetes, prediabetes,
#           gestational_diabetes, pcos, general
# Unknown conditions fall back to general.
condition: type2_diabetes

# Overrides replace condition defaults field by field. Omit to inherit.
overrides:
  # fasting_min: 70
  # fasting_max: 120
  # post_meal_max: 140
  # carb_limit: 45       # caps every meal's max net carbs
  # fiber_min: 8
  # glycemic_cap: 55     # 0 disables the glycemic ceiling
  # meal_frequency: 3
  starch_slots: 1

# Extra blocked terms are added to the condition's list.
# extra_blocked:
#   - term: peanut
#     aliases: [satay]
#     safe_variants: [peanut-free]

# Extra preferred terms, by category. Missing categories produce
# MISSING_PREFERRED_<CATEGORY> warnings.
# extra_preferred:
#   fiber: [okra]
`, name)
}
