package portal_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/vlsemenov/samaraenergo/internal/odata"
	"github.com/vlsemenov/samaraenergo/internal/portal"
)

// accountJSON mirrors a real portal response shape: one expanded
// collection, one deferred collection, one deferred single-valued
// property.
const accountJSON = `{
	"__metadata": {"type": "Z_ERP_UTILITIES_UMC_SRV_01.Account"},
	"AccountID": "1000123456",
	"FullName": "Иванов Иван Иванович",
	"StandardAccountAddress": {"__deferred": {"uri": "Accounts('1000123456')/StandardAccountAddress"}},
	"PaymentDocuments": {"__deferred": {"uri": "Accounts('1000123456')/PaymentDocuments"}},
	"ContractAccounts": {"results": [{
		"ContractAccountID": "200045",
		"Preisbtr1": "4.45",
		"Preisbtr2": "2.22",
		"Preisbtr3": "3.33",
		"Ttypbez": "Двухтарифный",
		"Vkona": "1234567890",
		"Regcnt": "2",
		"Livecnt": "2",
		"Homes": "54.30",
		"Roomcnt": 2,
		"Contracts": {"__deferred": {}},
		"Invoices": {"results": [{
			"InvoiceID": "INV-1",
			"InvoiceDate": "/Date(1710460800000)/",
			"DueDate": "/Date(253402214400000)/",
			"AmountDue": "1234.56",
			"AmountPaid": "1000.00",
			"AmountRemaining": "234.56",
			"InvoiceStatusID": "01"
		}]}
	}]}
}`

func TestDecodeAccount(t *testing.T) {
	a, err := portal.DecodeAccount(json.RawMessage(accountJSON))
	if err != nil {
		t.Fatalf("DecodeAccount failed: %v", err)
	}

	if a.AccountID != "1000123456" {
		t.Errorf("Expected AccountID '1000123456', got %q", a.AccountID)
	}
	if a.StandardAccountAddress != nil {
		t.Error("Expected deferred address to resolve to nil")
	}
	if len(a.PaymentDocuments) != 0 {
		t.Errorf("Expected deferred payments to resolve empty, got %d", len(a.PaymentDocuments))
	}
	if len(a.ContractAccounts) != 1 {
		t.Fatalf("Expected 1 contract account, got %d", len(a.ContractAccounts))
	}

	ca := a.ContractAccounts[0]
	if ca.Preisbtr1.String() != "4.45" {
		t.Errorf("Expected exact day tariff 4.45, got %s", ca.Preisbtr1)
	}
	if ca.Roomcnt != 2 {
		t.Errorf("Expected 2 rooms, got %d", ca.Roomcnt)
	}
	if len(ca.Contracts) != 0 {
		t.Errorf("Expected deferred contracts to resolve empty, got %d", len(ca.Contracts))
	}
	if len(ca.Invoices) != 1 {
		t.Fatalf("Expected 1 invoice, got %d", len(ca.Invoices))
	}

	inv := ca.Invoices[0]
	if !inv.InvoiceDate.Equal(odata.NewDate(2024, time.March, 15)) {
		t.Errorf("Expected invoice date 2024-03-15, got %v", inv.InvoiceDate.Time())
	}
	if inv.DueDate.Valid() {
		t.Error("Expected sentinel due date to decode as absent")
	}
	if inv.AmountRemaining.String() != "234.56" {
		t.Errorf("Expected exact remaining amount 234.56, got %s", inv.AmountRemaining)
	}
}

func TestDecodeAccountIdempotent(t *testing.T) {
	first, err := portal.DecodeAccount(json.RawMessage(accountJSON))
	if err != nil {
		t.Fatalf("DecodeAccount failed: %v", err)
	}
	second, err := portal.DecodeAccount(json.RawMessage(accountJSON))
	if err != nil {
		t.Fatalf("DecodeAccount failed: %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Error("Expected decoding the same payload twice to produce equal entities")
	}
}

func TestDecodeAccountMissingField(t *testing.T) {
	_, err := portal.DecodeAccount(json.RawMessage(`{"AccountID": "1"}`))

	var missing *portal.MissingFieldError
	if !errors.As(err, &missing) {
		t.Fatalf("Expected MissingFieldError, got %v", err)
	}
	if missing.Entity != "Account" || missing.Field != "FullName" {
		t.Errorf("Expected Account.FullName to be reported, got %s.%s", missing.Entity, missing.Field)
	}
}

func TestDecodeAccountNestedErrorAborts(t *testing.T) {
	// invoice with a broken date: the whole account must fail, no
	// partial entity
	raw := `{
		"AccountID": "1",
		"FullName": "x",
		"StandardAccountAddress": {"__deferred": {}},
		"PaymentDocuments": {"__deferred": {}},
		"ContractAccounts": {"results": [{
			"ContractAccountID": "2",
			"Preisbtr1": "1", "Preisbtr2": "1", "Preisbtr3": "1",
			"Ttypbez": "t", "Vkona": "v",
			"Regcnt": "1", "Livecnt": "1", "Homes": "1", "Roomcnt": 1,
			"Contracts": {"__deferred": {}},
			"Invoices": {"results": [{
				"InvoiceID": "INV-1",
				"InvoiceDate": "not-a-date",
				"DueDate": "/Date(253402214400000)/",
				"AmountDue": "1", "AmountPaid": "1", "AmountRemaining": "0",
				"InvoiceStatusID": "01"
			}]}
		}]}
	}`

	_, err := portal.DecodeAccount(json.RawMessage(raw))

	var formatErr *odata.FormatError
	if !errors.As(err, &formatErr) {
		t.Fatalf("Expected FormatError from nested invoice date, got %v", err)
	}
}

func TestDecodeMeterReadingAcceptedFlag(t *testing.T) {
	template := `{
		"MeterReadingResultID": "99",
		"RegisterID": "001",
		"ReadingResult": "1500",
		"ReadingDateTime": "/Date(1710460800000)/",
		"Zwarttxt": "День",
		"Text40": "Моб. личный кабинет",
		"Prkrasch": %q
	}`

	cases := []struct {
		wire     string
		expected bool
	}{
		{"", false},
		{"X", true},
	}

	for _, c := range cases {
		m, err := portal.DecodeMeterReading(json.RawMessage(fmt.Sprintf(template, c.wire)))
		if err != nil {
			t.Fatalf("DecodeMeterReading failed: %v", err)
		}
		if m.Prkrasch != c.expected {
			t.Errorf("Expected Prkrasch %q to decode as %v", c.wire, c.expected)
		}
	}
}

func TestDecodeDeviceWithRegisters(t *testing.T) {
	raw := `{
		"DeviceID": "D1", "SerialNumber": "SN-7",
		"Vbsarttext": "", "Text30": "", "Einbdat1": "", "Uitext": "",
		"GridName": "АО Сети", "Bgljahr": "2019", "Bauform": "Меркурий",
		"Vlzeitt": "16", "Stanzvor": "6", "Stanznac": "1",
		"Zwfakt": "1", "Baukltxt": "", "LvProv": "2035", "Plomba": "X",
		"LineAdr": "", "DevlocPltxt": "",
		"RegistersToRead": {"results": [{
			"RegisterID": "001",
			"PreviousMeterReadingResult": "15230.5",
			"PreviousMeterReadingDate": "/Date(1710460800000)/",
			"ReasonText": "",
			"Zwarttxt": "День"
		}]},
		"MeterReadingResults": {"__deferred": {}}
	}`

	dev, err := portal.DecodeDevice(json.RawMessage(raw))
	if err != nil {
		t.Fatalf("DecodeDevice failed: %v", err)
	}

	if len(dev.RegistersToRead) != 1 {
		t.Fatalf("Expected 1 register, got %d", len(dev.RegistersToRead))
	}
	if dev.RegistersToRead[0].PreviousMeterReadingResult.String() != "15230.5" {
		t.Errorf("Expected exact previous reading 15230.5, got %s", dev.RegistersToRead[0].PreviousMeterReadingResult)
	}
	if len(dev.MeterReadingResults) != 0 {
		t.Errorf("Expected deferred readings to resolve empty, got %d", len(dev.MeterReadingResults))
	}
}
