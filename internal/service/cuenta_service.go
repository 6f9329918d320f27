package service

import (
	"context"
	"time"

	"hospicaja/internal/apierror"
	"hospicaja/internal/dto"
	"hospicaja/internal/model"
	"hospicaja/internal/repository"

	"github.com/google/uuid"
)

// CuentaService is the thin account surface the caja core exposes. Charges
// and credits are owned by the wider hospital system; here we only open
// accounts and read balances.
type CuentaService interface {
	Crear(ctx context.Context, req dto.CrearCuentaRequest) (*dto.CuentaResponse, error)
	Obtener(ctx context.Context, id uuid.UUID) (*dto.CuentaResponse, error)
}

type cuentaService struct {
	repo repository.CuentaRepository
}

func NewCuentaService(repo repository.CuentaRepository) CuentaService {
	return &cuentaService{repo: repo}
}

func (s *cuentaService) Crear(ctx context.Context, req dto.CrearCuentaRequest) (*dto.CuentaResponse, error) {
	pacienteID, err := uuid.Parse(req.PacienteID)
	if err != nil {
		return nil, apierror.Validation("paciente_id inválido")
	}
	cuenta := &model.CuentaPaciente{
		PacienteID:     pacienteID,
		SaldoPendiente: req.SaldoPendiente,
		Activa:         true,
	}
	if err := s.repo.Create(ctx, cuenta); err != nil {
		return nil, err
	}
	return cuentaToResponse(cuenta), nil
}

func (s *cuentaService) Obtener(ctx context.Context, id uuid.UUID) (*dto.CuentaResponse, error) {
	cuenta, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, repository.MapError(err, "cuenta de paciente no encontrada", "")
	}
	return cuentaToResponse(cuenta), nil
}

func cuentaToResponse(c *model.CuentaPaciente) *dto.CuentaResponse {
	return &dto.CuentaResponse{
		ID:             c.ID.String(),
		PacienteID:     c.PacienteID.String(),
		SaldoPendiente: c.SaldoPendiente,
		Activa:         c.Activa,
		CreatedAt:      c.CreatedAt.Format(time.RFC3339),
	}
}
