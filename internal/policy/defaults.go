package policy

import (
	"github.com/ppiankov/mealguard/internal/model"
	"github.com/ppiankov/mealguard/internal/terms"
)

// Shared blocked terms. Aliases are hidden sources; safe variants exempt the
// text entirely for that term.
var (
	termSugar = terms.Term{
		Name: "sugar",
		Aliases: []string{
			"honey", "syrup", "ketchup", "molasses", "agave", "candy",
			"frosting", "jam", "marmalade", "caramel", "sweetened condensed",
		},
		SafeVariants: []string{
			"sugar-free", "sugar free", "no sugar", "no added sugar",
			"zero sugar", "unsweetened", "sugar snap", "honeydew",
		},
	}
	termRice = terms.Term{
		Name:         "rice",
		Aliases:      []string{"risotto", "paella"},
		SafeVariants: []string{"cauliflower rice", "riced cauliflower", "broccoli rice", "rice vinegar"},
	}
	termPasta = terms.Term{
		Name:    "pasta",
		Aliases: []string{"spaghetti", "macaroni", "fettuccine", "linguine", "penne", "lasagna"},
		SafeVariants: []string{
			"zucchini", "chickpea pasta", "lentil pasta", "shirataki", "konjac",
			"spaghetti squash", "hearts of palm",
		},
	}
	termWhiteBread = terms.Term{
		Name:         "white bread",
		Aliases:      []string{"baguette", "bagel", "brioche", "white roll"},
		SafeVariants: []string{"whole grain", "whole wheat", "low-carb", "keto", "sprouted"},
	}
	termPotato = terms.Term{
		Name:         "potato",
		Aliases:      []string{"fries", "hash brown", "tater"},
		SafeVariants: []string{"sweet potato"},
	}
	termJuice = terms.Term{
		Name:         "juice",
		SafeVariants: []string{"lemon juice", "lime juice"},
	}
	termSoda = terms.Term{
		Name:         "soda",
		Aliases:      []string{"soft drink", "cola", "lemonade"},
		SafeVariants: []string{"diet soda", "club soda", "soda water", "baking soda", "zero sugar"},
	}
	termPastry = terms.Term{
		Name:         "pastry",
		Aliases:      []string{"croissant", "donut", "doughnut", "cake", "cupcake", "cheesecake", "muffin", "cookie", "pie crust"},
		SafeVariants: []string{"sugar-free", "keto", "almond flour", "fish cake", "crab cake", "rice cake"},
	}
	termCereal = terms.Term{
		Name:         "cereal",
		Aliases:      []string{"cornflakes", "frosted flakes"},
		SafeVariants: []string{"bran", "unsweetened"},
	}
	termDeepFried = terms.Term{
		Name:    "deep-fried",
		Aliases: []string{"deep fried", "battered"},
	}
	termAlcohol = terms.Term{
		Name:         "alcohol",
		Aliases:      []string{"wine", "beer", "vodka", "rum", "whiskey", "liqueur", "sake"},
		SafeVariants: []string{"non-alcoholic", "alcohol-free", "wine vinegar"},
	}
	termRawFish = terms.Term{
		Name:         "raw fish",
		Aliases:      []string{"sashimi", "sushi", "ceviche", "tartare"},
		SafeVariants: []string{"cooked", "vegetarian sushi", "seared"},
	}
	termUnpasteurized = terms.Term{
		Name:    "unpasteurized",
		Aliases: []string{"raw milk"},
	}
	termHighMercury = terms.Term{
		Name:    "high-mercury fish",
		Aliases: []string{"swordfish", "king mackerel", "shark", "tilefish", "bigeye tuna"},
	}
	termDeliMeat = terms.Term{
		Name:         "deli meat",
		Aliases:      []string{"cold cuts", "salami", "luncheon meat"},
		SafeVariants: []string{"heated", "cooked through"},
	}
	termProcessedMeat = terms.Term{
		Name:    "processed meat",
		Aliases: []string{"hot dog", "bacon", "sausage", "pepperoni"},
		SafeVariants: []string{
			"turkey bacon", "chicken sausage", "plant-based",
		},
	}
	termTransFat = terms.Term{
		Name:    "trans fat",
		Aliases: []string{"margarine", "shortening", "partially hydrogenated"},
	}
)

// Preferred categories. Keys become MISSING_PREFERRED_<KEY> warnings.
var (
	preferProtein = []string{
		"chicken", "turkey", "fish", "salmon", "cod", "tuna", "shrimp", "egg",
		"tofu", "tempeh", "edamame", "beans", "lentil", "chickpea",
		"greek yogurt", "cottage cheese", "beef", "pork",
	}
	preferFiber = []string{
		"broccoli", "spinach", "kale", "cauliflower", "zucchini", "bell pepper",
		"lettuce", "greens", "asparagus", "green beans", "brussels sprouts",
		"cabbage", "mushroom", "tomato", "cucumber", "berries", "chia",
		"flax", "oats",
	}
	preferHealthyFat = []string{
		"avocado", "olive oil", "almond", "walnut", "nuts", "seeds", "olives",
	}
)

func ranges(b, l, d, s model.CarbRange) map[model.MealType]model.CarbRange {
	return map[model.MealType]model.CarbRange{
		model.Breakfast: b,
		model.Lunch:     l,
		model.Dinner:    d,
		model.Snack:     s,
	}
}

func cr(lo, hi float64) model.CarbRange { return model.CarbRange{Min: lo, Max: hi} }

// DefaultConfig returns the built-in policy tables.
func DefaultConfig() *Config {
	return &Config{
		SystemDefaults: model.ResolvedGuardrails{
			FastingMin:    70,
			FastingMax:    120,
			PostMealMax:   140,
			CarbLimit:     45,
			FiberMin:      5,
			GlycemicCap:   55,
			MealFrequency: 3,
			StarchSlots:   2,
		},
		Fallback: model.ConditionGeneral,
		Conditions: map[model.Condition]ConditionPolicy{
			model.ConditionType2: {
				Description:     "Type 2 diabetes: tight per-meal net carbs, low glycemic load",
				CarbRanges:      ranges(cr(15, 30), cr(30, 45), cr(30, 45), cr(5, 15)),
				GlycemicCeiling: true,
				Guardrails: &model.Guardrails{
					FiberMin:    model.Float(8),
					StarchSlots: model.Int(1),
				},
				Blocked: []terms.Term{
					termSugar, termRice, termPasta, termWhiteBread, termPotato,
					termJuice, termSoda, termPastry, termCereal, termDeepFried,
				},
				Preferred:     map[string][]string{"protein": preferProtein, "fiber": preferFiber},
				CarbWarnRatio: 0.8,
				CalorieWarn:   650,
			},
			model.ConditionType1: {
				Description: "Type 1 diabetes: carb-counted meals, insulin matched",
				CarbRanges:  ranges(cr(30, 60), cr(45, 60), cr(45, 60), cr(15, 20)),
				Guardrails: &model.Guardrails{
					FastingMax:  model.Float(130),
					PostMealMax: model.Float(180),
					CarbLimit:   model.Float(60),
				},
				Blocked:       []terms.Term{termSugar, termJuice, termSoda},
				Preferred:     map[string][]string{"protein": preferProtein},
				CarbWarnRatio: 0.9,
				CalorieWarn:   800,
			},
			model.ConditionPrediabet: {
				Description:     "Prediabetes: moderate carbs, fiber first",
				CarbRanges:      ranges(cr(30, 45), cr(30, 60), cr(30, 60), cr(10, 20)),
				GlycemicCeiling: true,
				Guardrails: &model.Guardrails{
					FiberMin: model.Float(6),
				},
				Blocked: []terms.Term{
					termSugar, termWhiteBread, termJuice, termSoda, termPastry, termCereal,
				},
				Preferred:     map[string][]string{"protein": preferProtein, "fiber": preferFiber},
				CarbWarnRatio: 0.8,
				CalorieWarn:   700,
			},
			model.ConditionGestation: {
				Description:     "Gestational diabetes: small frequent meals, food safety",
				CarbRanges:      ranges(cr(15, 30), cr(30, 45), cr(30, 45), cr(15, 30)),
				GlycemicCeiling: true,
				Guardrails: &model.Guardrails{
					FastingMax:    model.Float(95),
					PostMealMax:   model.Float(140),
					MealFrequency: model.Int(6),
					StarchSlots:   model.Int(1),
				},
				Blocked: []terms.Term{
					termSugar, termJuice, termSoda, termPastry, termAlcohol,
					termRawFish, termUnpasteurized, termHighMercury, termDeliMeat,
				},
				Preferred:     map[string][]string{"protein": preferProtein, "fiber": preferFiber},
				CarbWarnRatio: 0.8,
				CalorieWarn:   600,
			},
			model.ConditionPCOS: {
				Description:     "PCOS: insulin-sensitivity focus, anti-inflammatory",
				CarbRanges:      ranges(cr(25, 40), cr(30, 45), cr(30, 45), cr(10, 20)),
				GlycemicCeiling: true,
				Guardrails: &model.Guardrails{
					FiberMin: model.Float(6),
				},
				Blocked: []terms.Term{
					termSugar, termWhiteBread, termSoda, termPastry,
					termProcessedMeat, termTransFat, termDeepFried,
				},
				Preferred: map[string][]string{
					"protein":     preferProtein,
					"fiber":       preferFiber,
					"healthy_fat": preferHealthyFat,
				},
				CarbWarnRatio: 0.8,
				CalorieWarn:   650,
			},
			model.ConditionGeneral: {
				Description: "General wellness: permissive defaults",
				CarbRanges:  ranges(cr(0, 75), cr(0, 90), cr(0, 90), cr(0, 40)),
				Guardrails: &model.Guardrails{
					CarbLimit: model.Float(90),
				},
				CarbWarnRatio: 0.9,
				CalorieWarn:   900,
			},
		},
		StarchTerms: []terms.Term{
			{Name: "rice", Aliases: []string{"risotto", "paella"}, SafeVariants: []string{"cauliflower rice", "riced cauliflower", "broccoli rice", "rice vinegar"}},
			{Name: "pasta", Aliases: []string{"spaghetti", "macaroni", "penne", "lasagna"}, SafeVariants: []string{"zucchini", "shirataki", "konjac", "spaghetti squash"}},
			{Name: "noodle", SafeVariants: []string{"zucchini noodle", "zoodle", "shirataki", "kelp noodle"}},
			{Name: "bread", Aliases: []string{"toast", "bagel", "baguette", "bun", "pita", "naan"}, SafeVariants: []string{"cloud bread", "lettuce bun"}},
			{Name: "tortilla", SafeVariants: []string{"lettuce wrap"}},
			{Name: "potato", Aliases: []string{"fries", "hash brown"}, SafeVariants: []string{"sweet potato"}},
			{Name: "couscous", SafeVariants: []string{"cauliflower couscous"}},
			{Name: "quinoa"},
		},
	}
}

func permissivePolicy() ConditionPolicy {
	return ConditionPolicy{
		Description:   "permissive",
		CarbRanges:    ranges(cr(0, 90), cr(0, 90), cr(0, 90), cr(0, 40)),
		CarbWarnRatio: 0.9,
	}
}
