package gateway

// creditMode determines how credit quantities are extracted from a row.
type creditMode int

const (
	// creditsSplit means one column per kind ("Créditos gravação"/"Créditos IA").
	creditsSplit creditMode = iota
	// creditsSingle means a quantity column plus a column naming the kind.
	creditsSingle
)

// Profile describes the column layout of a gateway sales export.
type Profile struct {
	Name       string
	DateCol    string
	RefCol     string
	AccountCol string
	AmountCol  string
	CreditMode creditMode
	RecordCol  string // creditsSplit
	AICol      string // creditsSplit
	CreditsCol string // creditsSingle
	KindCol    string // creditsSingle

	// Optional columns. Rows are kept when absent.
	StatusCol   string
	ValidityCol string
}

func (p Profile) requiredCols() []string {
	cols := []string{p.DateCol, p.RefCol, p.AccountCol, p.AmountCol}

	switch p.CreditMode {
	case creditsSplit:
		cols = append(cols, p.RecordCol, p.AICol)
	case creditsSingle:
		cols = append(cols, p.CreditsCol, p.KindCol)
	}

	return cols
}

// profiles is tried in order during detection. Package exports come first
// since the single-item layout shares most of their headers.
var profiles = []Profile{
	{
		Name:        "pacotes",
		DateCol:     "Data da compra",
		RefCol:      "Código da transação",
		AccountCol:  "Referência externa",
		AmountCol:   "Valor pago",
		CreditMode:  creditsSplit,
		RecordCol:   "Créditos gravação",
		AICol:       "Créditos IA",
		StatusCol:   "Status",
		ValidityCol: "Validade (dias)",
	},
	{
		Name:        "avulso",
		DateCol:     "Data",
		RefCol:      "ID do pagamento",
		AccountCol:  "ID do cliente",
		AmountCol:   "Valor",
		CreditMode:  creditsSingle,
		CreditsCol:  "Créditos",
		KindCol:     "Tipo",
		StatusCol:   "Situação",
		ValidityCol: "Validade (dias)",
	},
}

// approved lists the status values, lowercased, that mean the payment cleared.
var approved = map[string]bool{
	"aprovado": true,
	"aprovada": true,
	"approved": true,
	"pago":     true,
	"paid":     true,
}
