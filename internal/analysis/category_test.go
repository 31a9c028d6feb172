package analysis

import "testing"

func TestCategorize(t *testing.T) {
	tests := []struct {
		device string
		want   Category
	}{
		{"Charger PzS 12V #3", CategoryPzS12V},
		{"China charger 48V", CategoryChina},
		{"Line SM 2", CategorySM},
		{"Press MO 7", CategoryMO},
		{"Unit BG 1", CategoryBG},
		{"DIG-44", CategoryDIG},
		{"Compressor CP-300", CategoryCP300},
		{"Unmapped-Unit-1", CategoryOther},
		{"SMALL", CategoryOther},
		// PzS without 12V falls through to the later rules
		{"PzS DIG", CategoryDIG},
	}
	for _, tt := range tests {
		t.Run(tt.device, func(t *testing.T) {
			if got := Categorize(tt.device); got != tt.want {
				t.Errorf("Categorize(%q) = %s, want %s", tt.device, got, tt.want)
			}
		})
	}
}

func TestAggregateCategories(t *testing.T) {
	tbl := hourlyTable(t, []string{"Unit BG 1", "Unmapped", "Unit BG 2"},
		repeat(1, 24), repeat(5, 24), repeat(2, 24))
	cats := AggregateCategories(Daily(tbl))
	if len(cats) != 2 {
		t.Fatalf("expected 2 categories, got %+v", cats)
	}
	if cats[0].Category != CategoryBG || cats[1].Category != CategoryOther {
		t.Errorf("order = %s, %s", cats[0].Category, cats[1].Category)
	}
	if cats[0].Daily[0] != 72 {
		t.Errorf("BG daily = %v, want 72", cats[0].Daily[0])
	}
	if len(cats[0].Members) != 2 || cats[0].Members[0] != "Unit BG 1" {
		t.Errorf("members = %v", cats[0].Members)
	}
}
