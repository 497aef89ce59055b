package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	DestinationExport   = "export"
	DestinationDomestic = "domestic"
)

// HarvestIndicators is the payload reported when completing a harvest task.
type HarvestIndicators struct {
	HarvestedKg    decimal.Decimal     `json:"kgCosechados"`
	Classification HarvestSplit        `json:"clasificacion"`
	Rejections     []HarvestRejectLine `json:"rechazos,omitempty"`
	PostHarvest    *PostHarvestReport  `json:"postcosecha,omitempty"`
	HarvestDate    string              `json:"fechaCosecha,omitempty"`
}

type HarvestSplit struct {
	Export     ExportLot       `json:"exportacion"`
	DomesticKg decimal.Decimal `json:"kgMercadoNacional"`
}

type ExportLot struct {
	Crates      int             `json:"gavetas"`
	AvgCrateKg  decimal.Decimal `json:"pesoPromedioGaveta"`
	EstimatedKg decimal.Decimal `json:"kgEstimados"`
}

// Kg is crates times the average crate weight when both are known, else the estimate.
func (e ExportLot) Kg() decimal.Decimal {
	if e.Crates > 0 && e.AvgCrateKg.IsPositive() {
		return e.AvgCrateKg.Mul(decimal.NewFromInt(int64(e.Crates)))
	}
	return e.EstimatedKg
}

type HarvestRejectLine struct {
	Cause string          `json:"causa"`
	Kg    decimal.Decimal `json:"kg"`
}

type PostHarvestReport struct {
	Washed      bool   `json:"lavado"`
	Disinfected bool   `json:"desinfectado"`
	Waxed       bool   `json:"encerado"`
	Packed      bool   `json:"empacado"`
	Notes       string `json:"observaciones,omitempty"`
}

type HarvestRecord struct {
	ID              uint                    `gorm:"primaryKey" json:"id"`
	Code            string                  `gorm:"uniqueIndex;not null;size:64" json:"code"`
	CampaignID      uint                    `gorm:"not null;index" json:"campaign_id"`
	PlotID          uint                    `gorm:"not null;index" json:"plot_id"`
	TaskID          uint                    `gorm:"not null;index" json:"task_id"`
	HarvestDate     time.Time               `gorm:"not null" json:"harvest_date"`
	HarvestedKg     decimal.Decimal         `gorm:"type:decimal(20,6);not null" json:"harvested_kg"`
	ExportKg        decimal.Decimal         `gorm:"type:decimal(20,6);not null" json:"export_kg"`
	DomesticKg      decimal.Decimal         `gorm:"type:decimal(20,6);not null" json:"domestic_kg"`
	RejectedKg      decimal.Decimal         `gorm:"type:decimal(20,6);not null" json:"rejected_kg"`
	Classifications []HarvestClassification `gorm:"foreignKey:HarvestRecordID" json:"classifications,omitempty"`
	Rejections      []HarvestRejection      `gorm:"foreignKey:HarvestRecordID" json:"rejections,omitempty"`
	PostHarvest     *PostHarvestDetail      `gorm:"foreignKey:HarvestRecordID" json:"post_harvest,omitempty"`
	CreatedAt       time.Time               `json:"created_at"`
	UpdatedAt       time.Time               `json:"updated_at"`
}

type HarvestClassification struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	HarvestRecordID uint            `gorm:"not null;index" json:"harvest_record_id"`
	Destination     string          `gorm:"not null;size:16" json:"destination"`
	Crates          int             `json:"crates"`
	AvgCrateKg      decimal.Decimal `gorm:"type:decimal(20,6)" json:"avg_crate_kg"`
	Kg              decimal.Decimal `gorm:"type:decimal(20,6);not null" json:"kg"`
}

type HarvestRejection struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	HarvestRecordID uint            `gorm:"not null;index" json:"harvest_record_id"`
	Cause           string          `gorm:"not null" json:"cause"`
	Kg              decimal.Decimal `gorm:"type:decimal(20,6);not null" json:"kg"`
}

type PostHarvestDetail struct {
	ID              uint   `gorm:"primaryKey" json:"id"`
	HarvestRecordID uint   `gorm:"not null;uniqueIndex" json:"harvest_record_id"`
	Washed          bool   `json:"washed"`
	Disinfected     bool   `json:"disinfected"`
	Waxed           bool   `json:"waxed"`
	Packed          bool   `json:"packed"`
	Notes           string `gorm:"type:text" json:"notes"`
}
