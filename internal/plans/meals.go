package plans

// Meal types.
const (
	MealBreakfast = "breakfast"
	MealLunch     = "lunch"
	MealDinner    = "dinner"
	MealSnack     = "snack"
)

// Prep levels.
const (
	PrepQuick     = "quick"
	PrepModerate  = "moderate"
	PrepElaborate = "elaborate"
)

var PrepLevels = []string{PrepQuick, PrepModerate, PrepElaborate}

var prepLimits = map[string]int{PrepQuick: 15, PrepModerate: 30, PrepElaborate: 1 << 30}

// dietRank orders diets from most to least restrictive.
var dietRank = map[string]int{DietVegan: 0, DietVegetarian: 1, DietPescatarian: 2, DietOmnivore: 3}

type mealEntry struct {
	name     string
	mealType string
	// diet is the most restrictive diet the meal satisfies.
	diet        string
	prepMinutes int
	calories    int
	protein     int
	carbs       int
	fats        int
	ingredients []string
}

var mealCatalog = []mealEntry{
	// breakfast
	{name: "Greek Yogurt Parfait", mealType: MealBreakfast, diet: DietVegetarian, prepMinutes: 5, calories: 380, protein: 28, carbs: 45, fats: 9,
		ingredients: []string{"greek yogurt (dairy)", "mixed berries", "granola (gluten)", "honey"}},
	{name: "Veggie Egg Scramble", mealType: MealBreakfast, diet: DietVegetarian, prepMinutes: 12, calories: 420, protein: 30, carbs: 28, fats: 20,
		ingredients: []string{"eggs", "spinach", "bell pepper", "onion", "whole grain toast (gluten)"}},
	{name: "Overnight Oats with Peanut Butter", mealType: MealBreakfast, diet: DietVegan, prepMinutes: 5, calories: 450, protein: 18, carbs: 58, fats: 16,
		ingredients: []string{"rolled oats", "soy milk (soy)", "peanut butter (peanuts)", "banana", "chia seeds"}},
	{name: "Tofu Breakfast Scramble", mealType: MealBreakfast, diet: DietVegan, prepMinutes: 15, calories: 360, protein: 24, carbs: 22, fats: 18,
		ingredients: []string{"firm tofu (soy)", "turmeric", "spinach", "cherry tomatoes", "avocado"}},
	{name: "Smoked Salmon Bagel", mealType: MealBreakfast, diet: DietPescatarian, prepMinutes: 8, calories: 430, protein: 27, carbs: 48, fats: 13,
		ingredients: []string{"whole wheat bagel (gluten)", "smoked salmon (fish)", "cream cheese (dairy)", "capers", "red onion"}},
	{name: "Turkey Sausage Breakfast Wrap", mealType: MealBreakfast, diet: DietOmnivore, prepMinutes: 15, calories: 470, protein: 32, carbs: 40, fats: 19,
		ingredients: []string{"turkey sausage", "eggs", "whole wheat tortilla (gluten)", "salsa", "cheddar cheese (dairy)"}},
	{name: "Protein Banana Smoothie", mealType: MealBreakfast, diet: DietVegetarian, prepMinutes: 5, calories: 350, protein: 30, carbs: 42, fats: 7,
		ingredients: []string{"whey protein (dairy)", "banana", "oat milk", "ground flaxseed"}},

	// lunch
	{name: "Grilled Chicken Quinoa Bowl", mealType: MealLunch, diet: DietOmnivore, prepMinutes: 25, calories: 560, protein: 45, carbs: 55, fats: 16,
		ingredients: []string{"chicken breast", "quinoa", "cucumber", "cherry tomatoes", "lemon tahini dressing (sesame)"}},
	{name: "Lentil and Vegetable Soup", mealType: MealLunch, diet: DietVegan, prepMinutes: 35, calories: 420, protein: 22, carbs: 62, fats: 8,
		ingredients: []string{"red lentils", "carrots", "celery", "onion", "vegetable broth", "cumin"}},
	{name: "Tuna Salad Wrap", mealType: MealLunch, diet: DietPescatarian, prepMinutes: 10, calories: 480, protein: 38, carbs: 42, fats: 16,
		ingredients: []string{"canned tuna (fish)", "light mayonnaise (eggs)", "celery", "whole wheat tortilla (gluten)", "lettuce"}},
	{name: "Chickpea Buddha Bowl", mealType: MealLunch, diet: DietVegan, prepMinutes: 20, calories: 520, protein: 21, carbs: 70, fats: 17,
		ingredients: []string{"chickpeas", "brown rice", "roasted sweet potato", "kale", "tahini (sesame)"}},
	{name: "Turkey and Avocado Sandwich", mealType: MealLunch, diet: DietOmnivore, prepMinutes: 8, calories: 510, protein: 36, carbs: 45, fats: 19,
		ingredients: []string{"sliced turkey breast", "avocado", "whole grain bread (gluten)", "tomato", "lettuce"}},
	{name: "Caprese Quinoa Salad", mealType: MealLunch, diet: DietVegetarian, prepMinutes: 15, calories: 470, protein: 22, carbs: 48, fats: 20,
		ingredients: []string{"quinoa", "fresh mozzarella (dairy)", "cherry tomatoes", "basil", "balsamic vinegar", "olive oil"}},
	{name: "Black Bean Burrito Bowl", mealType: MealLunch, diet: DietVegan, prepMinutes: 20, calories: 540, protein: 20, carbs: 80, fats: 14,
		ingredients: []string{"black beans", "brown rice", "corn", "salsa", "guacamole"}},

	// dinner
	{name: "Baked Salmon with Sweet Potato", mealType: MealDinner, diet: DietPescatarian, prepMinutes: 30, calories: 620, protein: 42, carbs: 50, fats: 24,
		ingredients: []string{"salmon fillet (fish)", "sweet potato", "broccoli", "olive oil", "lemon"}},
	{name: "Lean Beef Stir-Fry", mealType: MealDinner, diet: DietOmnivore, prepMinutes: 25, calories: 600, protein: 44, carbs: 58, fats: 18,
		ingredients: []string{"lean beef strips", "jasmine rice", "bell pepper", "snap peas", "soy sauce (soy)", "ginger"}},
	{name: "Tofu Vegetable Curry", mealType: MealDinner, diet: DietVegan, prepMinutes: 30, calories: 560, protein: 24, carbs: 62, fats: 22,
		ingredients: []string{"firm tofu (soy)", "coconut milk", "curry paste", "zucchini", "basmati rice"}},
	{name: "Turkey Meatballs with Pasta", mealType: MealDinner, diet: DietOmnivore, prepMinutes: 40, calories: 640, protein: 46, carbs: 68, fats: 18,
		ingredients: []string{"ground turkey", "whole wheat pasta (gluten)", "marinara sauce", "parmesan (dairy)", "eggs"}},
	{name: "Shrimp Fajitas", mealType: MealDinner, diet: DietPescatarian, prepMinutes: 20, calories: 530, protein: 38, carbs: 52, fats: 16,
		ingredients: []string{"shrimp (shellfish)", "bell pepper", "onion", "corn tortillas", "lime"}},
	{name: "Vegetarian Chili", mealType: MealDinner, diet: DietVegan, prepMinutes: 45, calories: 500, protein: 24, carbs: 72, fats: 10,
		ingredients: []string{"kidney beans", "black beans", "crushed tomatoes", "onion", "chili powder", "bell pepper"}},
	{name: "Paneer Tikka with Rice", mealType: MealDinner, diet: DietVegetarian, prepMinutes: 35, calories: 610, protein: 30, carbs: 60, fats: 26,
		ingredients: []string{"paneer (dairy)", "yogurt marinade (dairy)", "bell pepper", "basmati rice", "garam masala"}},
	{name: "Herb Roasted Chicken Thighs", mealType: MealDinner, diet: DietOmnivore, prepMinutes: 45, calories: 590, protein: 42, carbs: 40, fats: 26,
		ingredients: []string{"chicken thighs", "baby potatoes", "green beans", "rosemary", "olive oil"}},
	{name: "Vegetable Egg Fried Rice", mealType: MealDinner, diet: DietVegetarian, prepMinutes: 15, calories: 540, protein: 22, carbs: 70, fats: 18,
		ingredients: []string{"eggs", "cooked brown rice", "frozen peas", "carrots", "soy sauce (soy)", "spring onion"}},

	// snacks
	{name: "Apple with Almond Butter", mealType: MealSnack, diet: DietVegan, prepMinutes: 2, calories: 250, protein: 6, carbs: 28, fats: 14,
		ingredients: []string{"apple", "almond butter (tree nuts)"}},
	{name: "Cottage Cheese with Pineapple", mealType: MealSnack, diet: DietVegetarian, prepMinutes: 2, calories: 200, protein: 24, carbs: 20, fats: 3,
		ingredients: []string{"low-fat cottage cheese (dairy)", "pineapple"}},
	{name: "Hummus and Veggie Sticks", mealType: MealSnack, diet: DietVegan, prepMinutes: 5, calories: 220, protein: 8, carbs: 24, fats: 11,
		ingredients: []string{"hummus (sesame)", "carrots", "cucumber", "bell pepper"}},
	{name: "Hard-Boiled Eggs and Fruit", mealType: MealSnack, diet: DietVegetarian, prepMinutes: 12, calories: 230, protein: 14, carbs: 18, fats: 11,
		ingredients: []string{"eggs", "orange"}},
	{name: "Roasted Edamame", mealType: MealSnack, diet: DietVegan, prepMinutes: 15, calories: 190, protein: 17, carbs: 13, fats: 8,
		ingredients: []string{"edamame (soy)", "sea salt"}},
	{name: "Beef Jerky and Trail Mix", mealType: MealSnack, diet: DietOmnivore, prepMinutes: 1, calories: 280, protein: 20, carbs: 22, fats: 13,
		ingredients: []string{"beef jerky", "trail mix (tree nuts)", "raisins"}},
	{name: "Protein Rice Cakes", mealType: MealSnack, diet: DietVegetarian, prepMinutes: 3, calories: 210, protein: 18, carbs: 26, fats: 4,
		ingredients: []string{"rice cakes", "protein spread (dairy)", "sliced strawberries"}},
}

// mealSlots lists the sample meal types for a given sample count.
var mealSlots = map[int][]string{
	3: {MealBreakfast, MealLunch, MealDinner},
	4: {MealBreakfast, MealLunch, MealSnack, MealDinner},
	5: {MealBreakfast, MealSnack, MealLunch, MealSnack, MealDinner},
}

// mealTimeHints are suggested clock times per meal frequency.
var mealTimeHints = map[int][]string{
	2: {"08:00", "18:00"},
	3: {"08:00", "13:00", "19:00"},
	4: {"08:00", "12:00", "16:00", "19:30"},
	5: {"07:00", "10:00", "13:00", "16:00", "19:30"},
	6: {"07:00", "09:30", "12:00", "14:30", "17:00", "19:30"},
}

// MealTimeHints returns a copy of the suggested times for n meals a day.
func MealTimeHints(n int) []string {
	return append([]string(nil), mealTimeHints[n]...)
}
