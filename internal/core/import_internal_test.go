package core

import (
	"bytes"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestReadRows_CSV(t *testing.T) {
	csvData := "Product Code,Product Name,Quantity,Buying Price,Selling Price,Rent Price,Category\n" +
		"TERM-01,Payment Terminal S90,25,120,180,15,Terminals\n" +
		"RTR-04,LTE Router,10,45.50,,8,Routers\n"

	rows, err := readRows(strings.NewReader(csvData), "products.csv")
	if err != nil {
		t.Fatalf("readRows failed: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if err := checkHeader(rows, productImportHeader); err != nil {
		t.Errorf("header should match: %v", err)
	}
}

func TestReadRows_XLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	cells := [][]any{
		{"Client Name", "Product Name", "Quantity", "Type"},
		{"Cafe du Port", "Payment Terminal S90", 2, "buy"},
	}
	for i, row := range cells {
		addr, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(sheet, addr, &row); err != nil {
			t.Fatalf("failed to build fixture: %v", err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("failed to serialize fixture: %v", err)
	}
	f.Close()

	rows, err := readRows(bytes.NewReader(buf.Bytes()), "clients.xlsx")
	if err != nil {
		t.Fatalf("readRows failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if err := checkHeader(rows, clientImportHeader); err != nil {
		t.Errorf("header should match: %v", err)
	}
	if rows[1][2] != "2" {
		t.Errorf("numeric cell read as %q, want \"2\"", rows[1][2])
	}
}

func TestCheckHeader(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		wantErr bool
	}{
		{"exact", "Client Name,Product Name,Quantity,Type", false},
		{"case insensitive", "client name,product name,quantity,type", false},
		{"type with annotation", "Client Name,Product Name,Quantity,Type(buy|rent)", false},
		{"missing column", "Client Name,Product Name,Quantity", true},
		{"wrong column", "Client Name,Product Name,Qty,Type", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := readRows(strings.NewReader(tt.header+"\n"), "clients.csv")
			if err != nil {
				t.Fatalf("readRows failed: %v", err)
			}
			err = checkHeader(rows, clientImportHeader)
			if tt.wantErr && err == nil {
				t.Error("expected header error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected header error: %v", err)
			}
		})
	}
}

func TestParseProductRow(t *testing.T) {
	tests := []struct {
		name    string
		row     []string
		wantErr string
	}{
		{"valid", []string{"TERM-01", "Terminal", "25", "120", "180", "15", "Terminals"}, ""},
		{"empty prices default to zero", []string{"RTR-04", "Router", "", "", "", "", ""}, ""},
		{"missing code", []string{"", "Terminal", "1", "1", "1", "1", ""}, "product code is required"},
		{"missing name", []string{"X", "", "1", "1", "1", "1", ""}, "product name is required"},
		{"bad quantity", []string{"X", "Y", "lots", "1", "1", "1", ""}, "not a non-negative integer"},
		{"negative quantity", []string{"X", "Y", "-3", "1", "1", "1", ""}, "not a non-negative integer"},
		{"bad price", []string{"X", "Y", "1", "cheap", "1", "1", ""}, "buying price"},
		{"negative price", []string{"X", "Y", "1", "-5", "1", "1", ""}, "buying price"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := parseProductRow(tt.row)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.code != tt.row[0] {
				t.Errorf("code = %q, want %q", p.code, tt.row[0])
			}
		})
	}
}

func TestParseProductRow_ShortRow(t *testing.T) {
	// A CSV row missing trailing columns still parses; absent cells are empty.
	p, err := parseProductRow([]string{"TERM-01", "Terminal"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.quantity != 0 || !p.buyingPrice.IsZero() || p.category != "" {
		t.Errorf("missing cells should default to zero values, got %+v", p)
	}
}
