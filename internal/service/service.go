package service

import (
	"math/rand"
	"time"

	"debate_live/internal/repository"
)

type Services struct {
	User      *UserService
	Session   *SessionService
	Debate    *DebateService
	WebSocket *WebSocketManager
}

func NewServices(repos *repository.Repositories) *Services {
	wsManager := NewWebSocketManager()
	debateService := NewDebateService(repos.Session, wsManager)

	codes := NewCodeGenerator(rand.New(rand.NewSource(time.Now().UnixNano())))
	sessionService := NewSessionService(repos.Session, codes, debateService)
	userService := NewUserService(repos.User)

	return &Services{
		User:      userService,
		Session:   sessionService,
		Debate:    debateService,
		WebSocket: wsManager,
	}
}
