package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/h4ks-com/fieldops/internal/indicators"
	"github.com/h4ks-com/fieldops/internal/models"
	"github.com/h4ks-com/fieldops/internal/observability"
	"github.com/h4ks-com/fieldops/internal/repository"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// massTolerance absorbs rounding in field scales.
var massTolerance = decimal.RequireFromString("0.01")

// HarvestConsolidator turns a completed harvest task into its harvest record.
type HarvestConsolidator interface {
	ConsolidateInTx(tx *gorm.DB, task *models.Task) (*models.HarvestRecord, error)
}

type HarvestService struct {
	harvestRepo *repository.HarvestRepository
}

func NewHarvestService(harvestRepo *repository.HarvestRepository) *HarvestService {
	return &HarvestService{harvestRepo: harvestRepo}
}

// HarvestCode builds the record key C<campaign>-P<plot>-<yyyymmdd>.
func HarvestCode(campaignID, plotID uint, date time.Time) string {
	return fmt.Sprintf("C%d-P%d-%s", campaignID, plotID, date.Format("20060102"))
}

// CheckMassBalance fails when export, domestic and rejected mass together
// exceed the harvested mass by more than the tolerance.
func CheckMassBalance(h *models.HarvestIndicators) error {
	export := h.Classification.Export.Kg()
	domestic := h.Classification.DomesticKg
	rejected := rejectedKg(h)
	if export.Add(domestic).Add(rejected).GreaterThan(h.HarvestedKg.Add(massTolerance)) {
		return &MassBalanceError{
			HarvestedKg: h.HarvestedKg,
			ExportKg:    export,
			DomesticKg:  domestic,
			RejectedKg:  rejected,
		}
	}
	return nil
}

func rejectedKg(h *models.HarvestIndicators) decimal.Decimal {
	total := decimal.Zero
	for _, r := range h.Rejections {
		total = total.Add(r.Kg)
	}
	return total
}

func (s *HarvestService) ConsolidateInTx(tx *gorm.DB, task *models.Task) (record *models.HarvestRecord, err error) {
	defer func() {
		observability.HarvestConsolidationsTotal.WithLabelValues(ErrorKind(err)).Inc()
	}()

	data := task.Data.Data().Harvest
	if data == nil {
		return nil, validationf("harvest task %d has no harvest data", task.ID)
	}
	if task.CampaignID == nil {
		return nil, validationf("harvest task %d has no campaign", task.ID)
	}
	if err := CheckMassBalance(data); err != nil {
		return nil, err
	}

	harvestDate := task.ScheduledDate
	if data.HarvestDate != "" {
		harvestDate, err = time.Parse(time.DateOnly, data.HarvestDate)
		if err != nil {
			return nil, validationf("fechaCosecha %q is not a date", data.HarvestDate)
		}
	}

	code := HarvestCode(*task.CampaignID, task.PlotID, harvestDate)
	record, err = s.harvestRepo.FindByCodeForUpdate(tx, code)
	if err != nil {
		return nil, err
	}
	if record == nil {
		record = &models.HarvestRecord{Code: code}
	} else if record.TaskID != task.ID {
		return nil, fmt.Errorf("%w: harvest record %s already belongs to task %d", ErrConflict, code, record.TaskID)
	}

	export := data.Classification.Export
	record.CampaignID = *task.CampaignID
	record.PlotID = task.PlotID
	record.TaskID = task.ID
	record.HarvestDate = harvestDate
	record.HarvestedKg = data.HarvestedKg
	record.ExportKg = export.Kg()
	record.DomesticKg = data.Classification.DomesticKg
	record.RejectedKg = rejectedKg(data)

	if err := s.harvestRepo.SaveInTx(tx, record); err != nil {
		return nil, translateDBError(err)
	}

	classes := []models.HarvestClassification{
		{
			HarvestRecordID: record.ID,
			Destination:     models.DestinationExport,
			Crates:          export.Crates,
			AvgCrateKg:      export.AvgCrateKg,
			Kg:              record.ExportKg,
		},
		{
			HarvestRecordID: record.ID,
			Destination:     models.DestinationDomestic,
			Kg:              record.DomesticKg,
		},
	}
	rejections := make([]models.HarvestRejection, 0, len(data.Rejections))
	for _, r := range data.Rejections {
		rejections = append(rejections, models.HarvestRejection{
			HarvestRecordID: record.ID,
			Cause:           r.Cause,
			Kg:              r.Kg,
		})
	}
	if err := s.harvestRepo.ReplaceLinesInTx(tx, record.ID, classes, rejections); err != nil {
		return nil, err
	}

	if ph := data.PostHarvest; ph != nil {
		detail := &models.PostHarvestDetail{
			HarvestRecordID: record.ID,
			Washed:          ph.Washed,
			Disinfected:     ph.Disinfected,
			Waxed:           ph.Waxed,
			Packed:          ph.Packed,
			Notes:           ph.Notes,
		}
		if err := s.harvestRepo.UpsertPostHarvestInTx(tx, detail); err != nil {
			return nil, err
		}
	} else if err := s.harvestRepo.DeletePostHarvestInTx(tx, record.ID); err != nil {
		return nil, err
	}

	record.Classifications = classes
	record.Rejections = rejections
	return record, nil
}

// DecodeHarvestIndicators parses a harvest completion payload. Harvest has no
// indicator schema; the payload is checked structurally and failures are
// reported as indicator validation errors.
func DecodeHarvestIndicators(payload json.RawMessage) (*models.HarvestIndicators, error) {
	var h models.HarvestIndicators
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&h); err != nil {
		return nil, &IndicatorValidationError{
			ActivityType: indicators.Harvest,
			Fields:       []indicators.FieldError{{Field: "$", Rule: "json", Message: err.Error()}},
		}
	}

	var fields []indicators.FieldError
	var present struct {
		HarvestedKg *decimal.Decimal `json:"kgCosechados"`
	}
	_ = json.Unmarshal(payload, &present)
	switch {
	case present.HarvestedKg == nil:
		fields = append(fields, indicators.FieldError{Field: "kgCosechados", Rule: "required", Message: "is required"})
	case !h.HarvestedKg.IsPositive():
		fields = append(fields, indicators.FieldError{Field: "kgCosechados", Rule: "gt", Message: "must be greater than 0"})
	}

	negative := func(field string, v decimal.Decimal) {
		if v.IsNegative() {
			fields = append(fields, indicators.FieldError{Field: field, Rule: "gte", Message: "must be zero or greater"})
		}
	}
	negative("clasificacion.exportacion.pesoPromedioGaveta", h.Classification.Export.AvgCrateKg)
	negative("clasificacion.exportacion.kgEstimados", h.Classification.Export.EstimatedKg)
	negative("clasificacion.kgMercadoNacional", h.Classification.DomesticKg)
	if h.Classification.Export.Crates < 0 {
		fields = append(fields, indicators.FieldError{Field: "clasificacion.exportacion.gavetas", Rule: "gte", Message: "must be zero or greater"})
	}
	for i, r := range h.Rejections {
		negative(fmt.Sprintf("rechazos[%d].kg", i), r.Kg)
		if strings.TrimSpace(r.Cause) == "" {
			fields = append(fields, indicators.FieldError{Field: fmt.Sprintf("rechazos[%d].causa", i), Rule: "required", Message: "is required"})
		}
	}
	if h.HarvestDate != "" {
		if _, err := time.Parse(time.DateOnly, h.HarvestDate); err != nil {
			fields = append(fields, indicators.FieldError{Field: "fechaCosecha", Rule: "datetime", Message: "must be a date formatted as 2006-01-02"})
		}
	}

	if len(fields) > 0 {
		return nil, &IndicatorValidationError{ActivityType: indicators.Harvest, Fields: fields}
	}
	return &h, nil
}

func (s *HarvestService) ListByCampaign(ctx context.Context, campaignID uint) ([]models.HarvestRecord, error) {
	return s.harvestRepo.ListByCampaign(campaignID)
}

// GetByCode returns the record with its classification, rejection and
// post-harvest rows.
func (s *HarvestService) GetByCode(ctx context.Context, code string) (*models.HarvestRecord, error) {
	record, err := s.harvestRepo.FindByCode(code)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, notFoundf("harvest record %s", code)
	}
	return record, nil
}
