package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/h4ks-com/fieldops/internal/models"
	"github.com/h4ks-com/fieldops/internal/repository"
)

var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_.-]{1,50}$`)

// CatalogService maintains the reference data the lifecycle reads: users,
// plots, campaigns and periods.
type CatalogService struct {
	userRepo    *repository.UserRepository
	catalogRepo *repository.CatalogRepository
}

func NewCatalogService(userRepo *repository.UserRepository, catalogRepo *repository.CatalogRepository) *CatalogService {
	return &CatalogService{
		userRepo:    userRepo,
		catalogRepo: catalogRepo,
	}
}

// EnsureUser creates the user or brings an existing one's name, role and
// active flag up to date.
func (s *CatalogService) EnsureUser(username, fullName, role string, active bool) (*models.User, error) {
	if !usernameRegex.MatchString(username) {
		return nil, validationf("invalid username %q", username)
	}
	switch role {
	case models.RoleSupervisor, models.RoleTechnician, models.RoleWorker:
	case "":
		role = models.RoleWorker
	default:
		return nil, validationf("unknown role %q", role)
	}

	user, err := s.userRepo.FindByUsername(username)
	if err != nil {
		return nil, err
	}

	if user == nil {
		user = &models.User{
			Username: username,
			FullName: fullName,
			Role:     role,
			Active:   active,
		}
		if err := s.userRepo.Create(user); err != nil {
			return nil, translateDBError(err)
		}
		return user, nil
	}

	if user.FullName == fullName && user.Role == role && user.Active == active {
		return user, nil
	}
	if fullName != "" {
		user.FullName = fullName
	}
	user.Role = role
	user.Active = active
	if err := s.userRepo.Update(user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *CatalogService) GetUser(ctx context.Context, id uint) (*models.User, error) {
	user, err := s.userRepo.FindByID(id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("%w %d", ErrUserNotFound, id)
	}
	return user, nil
}

func (s *CatalogService) FindUserByUsername(username string) (*models.User, error) {
	user, err := s.userRepo.FindByUsername(username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("%w %q", ErrUserNotFound, username)
	}
	return user, nil
}

func (s *CatalogService) ListUsers() ([]models.User, error) {
	return s.userRepo.FindAll()
}

func (s *CatalogService) ListActivityTypes() ([]models.ActivityType, error) {
	return s.catalogRepo.ListActivityTypes()
}

// EnsurePlot returns the plot with the given code, creating it if needed.
func (s *CatalogService) EnsurePlot(code, name string, areaHa float64) (*models.Plot, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, validationf("plot code is required")
	}
	plot, err := s.catalogRepo.FindPlotByCode(code)
	if err != nil {
		return nil, err
	}
	if plot != nil {
		return plot, nil
	}
	if name == "" {
		name = code
	}
	plot = &models.Plot{Code: code, Name: name, AreaHa: areaHa}
	if err := s.catalogRepo.CreatePlot(plot); err != nil {
		return nil, translateDBError(err)
	}
	return plot, nil
}

// CreateCampaign opens a campaign with one period per name.
func (s *CatalogService) CreateCampaign(name string, start time.Time, end *time.Time, open bool, periods []string) (*models.Campaign, []models.Period, error) {
	if strings.TrimSpace(name) == "" {
		return nil, nil, validationf("campaign name is required")
	}
	if end != nil && end.Before(start) {
		return nil, nil, validationf("campaign %q ends before it starts", name)
	}
	campaign := &models.Campaign{Name: name, StartDate: start, EndDate: end, Open: open}
	if err := s.catalogRepo.CreateCampaign(campaign); err != nil {
		return nil, nil, translateDBError(err)
	}

	created := make([]models.Period, 0, len(periods))
	for _, p := range periods {
		period := models.Period{CampaignID: campaign.ID, Name: p}
		if err := s.catalogRepo.CreatePeriod(&period); err != nil {
			return nil, nil, translateDBError(err)
		}
		created = append(created, period)
	}
	return campaign, created, nil
}
