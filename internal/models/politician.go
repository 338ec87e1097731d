package models

import "time"

// Chamber is the congressional branch a disclosure was filed with.
type Chamber string

const (
	ChamberHouse  Chamber = "House"
	ChamberSenate Chamber = "Senate"
)

// CongressionalTrade is a disclosed trade as returned by the data provider.
type CongressionalTrade struct {
	Representative   string
	TransactionDate  time.Time
	Ticker           string
	TransactionType  string // Purchase, Sale, ...
	Amount           string // a range like "$1,001 - $15,000"
	Source           Chamber
	ReportDate       *time.Time
	AssetDescription string
}

// PoliticianActivity is a persisted disclosure for a tracked politician.
type PoliticianActivity struct {
	ID               int64      `json:"id"`
	Politician       string     `json:"politician"`
	Ticker           string     `json:"ticker"`
	ActivityDate     time.Time  `json:"activity_date"`
	ActivityType     string     `json:"activity_type"`
	AmountRange      string     `json:"amount_range"`
	Source           Chamber    `json:"source"`
	ReportDate       *time.Time `json:"report_date,omitempty"`
	AssetDescription string     `json:"asset_description,omitempty"`
	Analyzed         bool       `json:"analyzed"`
	AnalysisNotes    string     `json:"analysis_notes,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}
