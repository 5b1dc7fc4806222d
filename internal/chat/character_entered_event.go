package chat

import (
	"time"

	"github.com/hongjun500/chat-sync/internal/protocol"
)

// CharacterEnteredEvent 有参与者进入当前房间
type CharacterEnteredEvent struct {
	When      time.Time
	Character protocol.Character
}

func (e *CharacterEnteredEvent) Type() EventType { return EventCharacterEntered }
func (e *CharacterEnteredEvent) Time() time.Time { return e.When }
