package plan

import "strings"

// ShoppingList aggregates every ingredient of a meal plan into a
// de-duplicated list, keeping first-seen order across the week. Duplicates
// are matched case-insensitively after trimming.
func ShoppingList(mp *MealPlan) []string {
	if mp == nil {
		return nil
	}

	seen := make(map[string]struct{})
	var items []string
	for _, day := range OrderedDays(mp.WeeklyPlan) {
		for _, meal := range mp.WeeklyPlan[day].Meals {
			for _, ing := range meal.Ingredients {
				item := strings.TrimSpace(ing)
				if item == "" {
					continue
				}
				key := strings.ToLower(item)
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}
				items = append(items, item)
			}
		}
	}
	return items
}
