package app

import (
	"github.com/yungbote/retroboard-backend/internal/data/store"
	"github.com/yungbote/retroboard-backend/internal/observability"
	"github.com/yungbote/retroboard-backend/internal/platform/logger"
	"github.com/yungbote/retroboard-backend/internal/realtime"
	"github.com/yungbote/retroboard-backend/internal/services"
)

type Services struct {
	Retro services.RetroService
	User  services.UserService
	Auth  services.AuthService
}

func wireServices(log *logger.Logger, cfg Config, st store.Store, hub *realtime.Hub, metrics *observability.Metrics) (Services, error) {
	log.Info("Wiring services...")
	policy, err := services.ParseVotePolicy(cfg.VotePolicy)
	if err != nil {
		return Services{}, err
	}
	return Services{
		Retro: services.NewRetroService(log, st, hub, metrics, services.RetroServiceConfig{
			VotePolicy:       policy,
			MutationAttempts: cfg.MutationAttempts,
		}),
		User: services.NewUserService(log, st),
		Auth: services.NewAuthService(log, st, cfg.JWTSecretKey, cfg.AccessTokenTTL),
	}, nil
}
