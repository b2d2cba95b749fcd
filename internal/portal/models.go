// Package portal models the SamaraEnergo personal-account entity graph.
//
// The provider is an SAP OData v2 service; wire names are kept verbatim on
// the exported fields (Vkona, Zwarttxt, ...) so that records read the same
// here and in the portal's own documentation. All read-side entities are
// immutable value records built fresh per response; decoding aborts on the
// first invalid field and never yields a partial entity.
package portal

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/vlsemenov/samaraenergo/internal/odata"
)

// Account is the root of the navigation tree: one personal-account login.
type Account struct {
	AccountID string
	FullName  string
	// StandardAccountAddress is nil unless expanded.
	StandardAccountAddress *AccountAddress
	ContractAccounts       []ContractAccount
	PaymentDocuments       []PaymentDocument
}

// AccountAddress links an account to its registered address.
type AccountAddress struct {
	AddressID   string
	AccountID   string
	AddressInfo AddressInfo
}

// AddressInfo is a flattened postal address.
type AddressInfo struct {
	PostalCode  string
	CountryName string
	RegionName  string
	City        string
	Street      string
	HouseNo     string
	RoomNo      string
}

// ShortForm renders the address the way the portal prints it on
// invoices: city, street, house, apartment; empty parts are skipped.
func (a AddressInfo) ShortForm() string {
	parts := make([]string, 0, 4)
	for _, p := range []string{a.City, a.Street, a.HouseNo, a.RoomNo} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// ContractAccount groups contracts and invoices under one personal
// account number (Vkona). Preisbtr1..3 are the day/night/half-peak
// kWh tariffs.
type ContractAccount struct {
	ContractAccountID string
	Preisbtr1         decimal.Decimal
	Preisbtr2         decimal.Decimal
	Preisbtr3         decimal.Decimal
	Ttypbez           string // tariff type
	Vkona             string // personal account number
	Regcnt            decimal.Decimal
	Livecnt           decimal.Decimal
	Homes             decimal.Decimal // total area, m2
	Roomcnt           int
	Contracts         []Contract
	Invoices          []Invoice
}

// Contract is a supply contract; Devices carry the meters installed
// under it.
type Contract struct {
	ContractID                string
	MoveInDate                odata.Date
	MoveOutDate               odata.Date
	Devices                   []Device
	ContractConsumptionValues []ContractConsumptionValue
}

// ContractConsumptionValue is one billing period's consumption.
type ContractConsumptionValue struct {
	ContractID       string
	StartDate        odata.Date
	EndDate          odata.Date
	BilledAmount     decimal.Decimal
	ConsumptionValue decimal.Decimal
}

// Device is a metering device.
type Device struct {
	DeviceID            string
	SerialNumber        string
	Vbsarttext          string // building type
	Text30              string
	Einbdat1            string
	Uitext              string
	GridName            string // grid operator
	Bgljahr             string // year of previous verification
	Bauform             string // device type
	Vlzeitt             string // verification interval
	Stanzvor            string // digits before the decimal point
	Stanznac            string // digits after the decimal point
	Zwfakt              decimal.Decimal
	Baukltxt            string
	LvProv              string // year of next verification
	Plomba              string // seal present
	LineAdr             string // installation place
	DevlocPltxt         string // supplied object
	RegistersToRead     []RegisterToRead
	MeterReadingResults []MeterReadingResult
}

// RegisterToRead is a meter register open for submission, with the last
// accepted reading.
type RegisterToRead struct {
	RegisterID                 string
	PreviousMeterReadingResult decimal.Decimal
	PreviousMeterReadingDate   odata.Date
	ReasonText                 string
	Zwarttxt                   string // tariff zone
}

// Invoice is a bill issued under a contract account.
type Invoice struct {
	InvoiceID       string
	InvoiceDate     odata.Date
	DueDate         odata.Date
	AmountDue       decimal.Decimal
	AmountPaid      decimal.Decimal
	AmountRemaining decimal.Decimal
	InvoiceStatusID string
}

// PaymentDocument confirms one payment on the account.
type PaymentDocument struct {
	PaymentDocumentID        string
	ExecutionDate            odata.Date
	Amount                   decimal.Decimal
	PaymentMethodDescription string
}

// Premise is the location a device is installed at.
type Premise struct {
	PremiseID     string
	PremiseTypeID string
	AddressInfo   AddressInfo
}

// ReadingValue is the field group shared by the outgoing reading payload
// and the confirmed reading the provider returns.
type ReadingValue struct {
	RegisterID      string          `json:"RegisterID"`
	ReadingResult   decimal.Decimal `json:"ReadingResult"`
	ReadingDateTime odata.DateTime  `json:"ReadingDateTime"`
}

// MeterReadingResult is a reading as submitted (and as echoed back under
// Device.MeterReadingResults). Dependent readings of further registers
// ride inside the primary as a plain inline array; the tree is one level
// deep by construction (see NewSubmission).
type MeterReadingResult struct {
	DependentMeterReadingResults []MeterReadingResult `json:"DependentMeterReadingResults"`
	ReadingValue
	DeviceID           string `json:"DeviceID"`
	MeterReadingNoteID string `json:"MeterReadingNoteID"`
}

// MeterReading is the confirmed reading constructed from the provider's
// response to a submission: the shared reading fields plus the
// server-assigned identifier and acceptance data.
type MeterReading struct {
	ReadingValue
	MeterReadingResultID string
	Zwarttxt             string // tariff zone description
	Text40               string // source channel description
	Prkrasch             bool   // accepted for billing; wire: empty string means false
}

// DecodeAccount builds an Account from one raw envelope record.
func DecodeAccount(raw json.RawMessage) (Account, error) {
	d := newDecoder("Account", raw)
	a := Account{
		AccountID:              d.str("AccountID"),
		FullName:               d.str("FullName"),
		StandardAccountAddress: deferred(d, "StandardAccountAddress", DecodeAccountAddress),
		ContractAccounts:       deferredList(d, "ContractAccounts", DecodeContractAccount),
		PaymentDocuments:       deferredList(d, "PaymentDocuments", DecodePaymentDocument),
	}
	if d.err != nil {
		return Account{}, d.err
	}
	return a, nil
}

func DecodeAccountAddress(raw json.RawMessage) (AccountAddress, error) {
	d := newDecoder("AccountAddress", raw)
	a := AccountAddress{
		AddressID:   d.str("AddressID"),
		AccountID:   d.str("AccountID"),
		AddressInfo: nested(d, "AddressInfo", DecodeAddressInfo),
	}
	if d.err != nil {
		return AccountAddress{}, d.err
	}
	return a, nil
}

func DecodeAddressInfo(raw json.RawMessage) (AddressInfo, error) {
	d := newDecoder("AddressInfo", raw)
	a := AddressInfo{
		PostalCode:  d.str("PostalCode"),
		CountryName: d.str("CountryName"),
		RegionName:  d.str("RegionName"),
		City:        d.str("City"),
		Street:      d.str("Street"),
		HouseNo:     d.str("HouseNo"),
		RoomNo:      d.str("RoomNo"),
	}
	if d.err != nil {
		return AddressInfo{}, d.err
	}
	return a, nil
}

func DecodeContractAccount(raw json.RawMessage) (ContractAccount, error) {
	d := newDecoder("ContractAccount", raw)
	c := ContractAccount{
		ContractAccountID: d.str("ContractAccountID"),
		Preisbtr1:         d.dec("Preisbtr1"),
		Preisbtr2:         d.dec("Preisbtr2"),
		Preisbtr3:         d.dec("Preisbtr3"),
		Ttypbez:           d.str("Ttypbez"),
		Vkona:             d.str("Vkona"),
		Regcnt:            d.dec("Regcnt"),
		Livecnt:           d.dec("Livecnt"),
		Homes:             d.dec("Homes"),
		Roomcnt:           d.integer("Roomcnt"),
		Contracts:         deferredList(d, "Contracts", DecodeContract),
		Invoices:          deferredList(d, "Invoices", DecodeInvoice),
	}
	if d.err != nil {
		return ContractAccount{}, d.err
	}
	return c, nil
}

func DecodeContract(raw json.RawMessage) (Contract, error) {
	d := newDecoder("Contract", raw)
	c := Contract{
		ContractID:                d.str("ContractID"),
		MoveInDate:                d.date("MoveInDate"),
		MoveOutDate:               d.date("MoveOutDate"),
		Devices:                   deferredList(d, "Devices", DecodeDevice),
		ContractConsumptionValues: deferredList(d, "ContractConsumptionValues", DecodeContractConsumptionValue),
	}
	if d.err != nil {
		return Contract{}, d.err
	}
	return c, nil
}

func DecodeContractConsumptionValue(raw json.RawMessage) (ContractConsumptionValue, error) {
	d := newDecoder("ContractConsumptionValue", raw)
	c := ContractConsumptionValue{
		ContractID:       d.str("ContractID"),
		StartDate:        d.date("StartDate"),
		EndDate:          d.date("EndDate"),
		BilledAmount:     d.dec("BilledAmount"),
		ConsumptionValue: d.dec("ConsumptionValue"),
	}
	if d.err != nil {
		return ContractConsumptionValue{}, d.err
	}
	return c, nil
}

func DecodeDevice(raw json.RawMessage) (Device, error) {
	d := newDecoder("Device", raw)
	dev := Device{
		DeviceID:            d.str("DeviceID"),
		SerialNumber:        d.str("SerialNumber"),
		Vbsarttext:          d.str("Vbsarttext"),
		Text30:              d.str("Text30"),
		Einbdat1:            d.str("Einbdat1"),
		Uitext:              d.str("Uitext"),
		GridName:            d.str("GridName"),
		Bgljahr:             d.str("Bgljahr"),
		Bauform:             d.str("Bauform"),
		Vlzeitt:             d.str("Vlzeitt"),
		Stanzvor:            d.str("Stanzvor"),
		Stanznac:            d.str("Stanznac"),
		Zwfakt:              d.dec("Zwfakt"),
		Baukltxt:            d.str("Baukltxt"),
		LvProv:              d.str("LvProv"),
		Plomba:              d.str("Plomba"),
		LineAdr:             d.str("LineAdr"),
		DevlocPltxt:         d.str("DevlocPltxt"),
		RegistersToRead:     deferredList(d, "RegistersToRead", DecodeRegisterToRead),
		MeterReadingResults: deferredList(d, "MeterReadingResults", DecodeMeterReadingResult),
	}
	if d.err != nil {
		return Device{}, d.err
	}
	return dev, nil
}

func DecodeRegisterToRead(raw json.RawMessage) (RegisterToRead, error) {
	d := newDecoder("RegisterToRead", raw)
	r := RegisterToRead{
		RegisterID:                 d.str("RegisterID"),
		PreviousMeterReadingResult: d.dec("PreviousMeterReadingResult"),
		PreviousMeterReadingDate:   d.date("PreviousMeterReadingDate"),
		ReasonText:                 d.str("ReasonText"),
		Zwarttxt:                   d.str("Zwarttxt"),
	}
	if d.err != nil {
		return RegisterToRead{}, d.err
	}
	return r, nil
}

func DecodeInvoice(raw json.RawMessage) (Invoice, error) {
	d := newDecoder("Invoice", raw)
	inv := Invoice{
		InvoiceID:       d.str("InvoiceID"),
		InvoiceDate:     d.date("InvoiceDate"),
		DueDate:         d.date("DueDate"),
		AmountDue:       d.dec("AmountDue"),
		AmountPaid:      d.dec("AmountPaid"),
		AmountRemaining: d.dec("AmountRemaining"),
		InvoiceStatusID: d.str("InvoiceStatusID"),
	}
	if d.err != nil {
		return Invoice{}, d.err
	}
	return inv, nil
}

func DecodePaymentDocument(raw json.RawMessage) (PaymentDocument, error) {
	d := newDecoder("PaymentDocument", raw)
	p := PaymentDocument{
		PaymentDocumentID:        d.str("PaymentDocumentID"),
		ExecutionDate:            d.date("ExecutionDate"),
		Amount:                   d.dec("Amount"),
		PaymentMethodDescription: d.str("PaymentMethodDescription"),
	}
	if d.err != nil {
		return PaymentDocument{}, d.err
	}
	return p, nil
}

func DecodePremise(raw json.RawMessage) (Premise, error) {
	d := newDecoder("Premise", raw)
	p := Premise{
		PremiseID:     d.str("PremiseID"),
		PremiseTypeID: d.str("PremiseTypeID"),
		AddressInfo:   nested(d, "AddressInfo", DecodeAddressInfo),
	}
	if d.err != nil {
		return Premise{}, d.err
	}
	return p, nil
}

// DecodeMeterReadingResult builds a reading in the submission shape, as
// echoed back under Device.MeterReadingResults.
func DecodeMeterReadingResult(raw json.RawMessage) (MeterReadingResult, error) {
	d := newDecoder("MeterReadingResult", raw)
	m := MeterReadingResult{
		DependentMeterReadingResults: deferredList(d, "DependentMeterReadingResults", DecodeMeterReadingResult),
		ReadingValue: ReadingValue{
			RegisterID:      d.str("RegisterID"),
			ReadingResult:   d.dec("ReadingResult"),
			ReadingDateTime: d.dateTime("ReadingDateTime"),
		},
		DeviceID:           d.str("DeviceID"),
		MeterReadingNoteID: d.str("MeterReadingNoteID"),
	}
	if d.err != nil {
		return MeterReadingResult{}, d.err
	}
	return m, nil
}

// DecodeMeterReading builds the confirmed reading from a submission
// response record.
func DecodeMeterReading(raw json.RawMessage) (MeterReading, error) {
	d := newDecoder("MeterReading", raw)
	m := MeterReading{
		ReadingValue: ReadingValue{
			RegisterID:      d.str("RegisterID"),
			ReadingResult:   d.dec("ReadingResult"),
			ReadingDateTime: d.dateTime("ReadingDateTime"),
		},
		MeterReadingResultID: d.str("MeterReadingResultID"),
		Zwarttxt:             d.str("Zwarttxt"),
		Text40:               d.str("Text40"),
		Prkrasch:             d.flag("Prkrasch"),
	}
	if d.err != nil {
		return MeterReading{}, d.err
	}
	return m, nil
}
