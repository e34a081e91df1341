package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fiscalgate/internal/dto"
	"fiscalgate/internal/model"
	"fiscalgate/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrRegisterNotFound = errors.New("register not found")

type RegisterService interface {
	Create(ctx context.Context, req dto.CreateRegisterRequest) (*dto.RegisterResponse, error)
	Get(ctx context.Context, id uuid.UUID) (*dto.RegisterResponse, error)
	List(ctx context.Context) ([]dto.RegisterResponse, error)
	Update(ctx context.Context, id uuid.UUID, req dto.UpdateRegisterRequest) (*dto.RegisterResponse, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type registerService struct {
	repo repository.RegisterRepository
}

func NewRegisterService(repo repository.RegisterRepository) RegisterService {
	return &registerService{repo: repo}
}

func (s *registerService) Create(ctx context.Context, req dto.CreateRegisterRequest) (*dto.RegisterResponse, error) {
	if _, err := s.repo.FindByGroupCode(ctx, req.GroupCode); err == nil {
		return nil, fmt.Errorf("register with group code %q already exists", req.GroupCode)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	reg := &model.Register{}
	applyRegisterRequest(reg, req)
	if err := s.repo.Create(ctx, reg); err != nil {
		return nil, err
	}
	return registerToResponse(reg), nil
}

func (s *registerService) Get(ctx context.Context, id uuid.UUID) (*dto.RegisterResponse, error) {
	reg, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRegisterNotFound
		}
		return nil, err
	}
	return registerToResponse(reg), nil
}

func (s *registerService) List(ctx context.Context) ([]dto.RegisterResponse, error) {
	regs, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]dto.RegisterResponse, 0, len(regs))
	for i := range regs {
		out = append(out, *registerToResponse(&regs[i]))
	}
	return out, nil
}

func (s *registerService) Update(ctx context.Context, id uuid.UUID, req dto.UpdateRegisterRequest) (*dto.RegisterResponse, error) {
	reg, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRegisterNotFound
		}
		return nil, err
	}
	applyRegisterRequest(reg, req)
	if err := s.repo.Update(ctx, reg); err != nil {
		return nil, err
	}
	return registerToResponse(reg), nil
}

func (s *registerService) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRegisterNotFound
		}
		return err
	}
	return s.repo.Delete(ctx, id)
}

// ── helpers ──────────────────────────────────────────────────────────────────

func applyRegisterRequest(reg *model.Register, req dto.CreateRegisterRequest) {
	reg.Name = req.Name
	reg.GroupCode = req.GroupCode
	reg.Login = req.Login
	reg.Password = req.Password
	reg.INN = req.INN
	reg.PaymentAddress = req.PaymentAddress
	reg.SNO = req.SNO
	reg.ServiceEmail = req.ServiceEmail
	reg.VATMap = req.VATMap
	reg.MeasureMap = req.MeasureMap
	reg.DefaultMeasure = req.DefaultMeasure

	reg.ClientInfo = req.ClientInfo
	if reg.ClientInfo == "" {
		reg.ClientInfo = "NONE"
	}
	reg.DefaultVAT = req.DefaultVAT
	if reg.DefaultVAT == "" {
		reg.DefaultVAT = "none"
	}
	reg.Mode = req.Mode
	if reg.Mode == "" {
		reg.Mode = "ACTIVE"
	}
}

func registerToResponse(reg *model.Register) *dto.RegisterResponse {
	return &dto.RegisterResponse{
		ID:             reg.ID.String(),
		Name:           reg.Name,
		GroupCode:      reg.GroupCode,
		Login:          reg.Login,
		INN:            reg.INN,
		PaymentAddress: reg.PaymentAddress,
		SNO:            reg.SNO,
		ServiceEmail:   reg.ServiceEmail,
		ClientInfo:     reg.ClientInfo,
		VATMap:         reg.VATMap,
		DefaultVAT:     reg.DefaultVAT,
		MeasureMap:     reg.MeasureMap,
		DefaultMeasure: reg.DefaultMeasure,
		Mode:           reg.Mode,
		CreatedAt:      reg.CreatedAt.Format(time.RFC3339),
	}
}
