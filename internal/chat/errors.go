package chat

import "github.com/hongjun500/chat-sync/internal/observe"

// RejectReason 发送被拒原因
type RejectReason string

const (
	RejectMessageNotFound  RejectReason = "not_found"
	RejectTargetNotPresent RejectReason = "target_not_present"
	RejectSelfTarget       RejectReason = "self_target"
	RejectIncompatibleMode RejectReason = "incompatible_mode"
	RejectTooLong          RejectReason = "too_long"
	RejectRestricted       RejectReason = "restricted"
)

// SendRejectedError 发送前的同步校验失败，在任何网络调用之前返回
type SendRejectedError struct {
	Reason RejectReason
	Detail string
}

func (e *SendRejectedError) Error() string {
	if e.Detail == "" {
		return string(e.Reason)
	}
	return string(e.Reason) + ": " + e.Detail
}

func rejected(reason RejectReason, detail string) error {
	observe.IncRejectedSend(string(reason))
	return &SendRejectedError{Reason: reason, Detail: detail}
}
