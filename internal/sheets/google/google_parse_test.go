package google

import (
	"reflect"
	"testing"
)

func TestToRows(t *testing.T) {
	values := [][]interface{}{
		{"Data", "Descrição", "Valor"},
		{"05/01/2025", " IFOOD *Restaurante ", -20.5},
		{"06/01/2025", "Uber", "R$ -10,00", true},
		{"07/01/2025", nil},
		{},
	}
	want := [][]string{
		{"Data", "Descrição", "Valor"},
		{"05/01/2025", "IFOOD *Restaurante", "-20.5"},
		{"06/01/2025", "Uber", "R$ -10,00", "true"},
		{"07/01/2025", ""},
		{},
	}
	if got := toRows(values); !reflect.DeepEqual(got, want) {
		t.Fatalf("got %#v, want %#v", got, want)
	}
}

func TestRangeFor(t *testing.T) {
	tests := []struct {
		sheet, cells, want string
	}{
		{"Transactions", "", "Transactions"},
		{"Transactions", "A1:D500", "Transactions!A1:D500"},
		{"Extrato 2025", "A:C", "'Extrato 2025'!A:C"},
		{"Ignored", "Other!A:C", "Other!A:C"},
		{"", "A1:B2", "A1:B2"},
		{"Bob's", "", "'Bob''s'"},
	}
	for _, tt := range tests {
		if got := RangeFor(tt.sheet, tt.cells); got != tt.want {
			t.Errorf("RangeFor(%q, %q) = %q, want %q", tt.sheet, tt.cells, got, tt.want)
		}
	}
}
