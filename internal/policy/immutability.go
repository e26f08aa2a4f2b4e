// Package policy decides which mutations a contract still accepts and who may
// sign it.
package policy

import "github.com/nurpe/lease-contracts/internal/model"

// State is the part of a contract the immutability rules look at.
type State struct {
	Status          model.ContractStatus
	HasAnySignature bool
	Deleted         bool
}

// Decision carries a message that callers show to the end user as is.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Message string `json:"message,omitempty"`
}

const (
	msgDeleted      = "contract has been deleted"
	msgAwaiting     = "contract is awaiting signatures; only administrative metadata can be changed"
	msgSigned       = "contract has been signed and is immutable; create an amendment instead"
	msgClosed       = "contract is closed and can no longer be changed"
	msgDeleteSigned = "contract has signatures or is under signature and cannot be deleted"
	msgStillPending = "contract is still editable; change it directly instead of amending"
	msgNotAmendable = "only signed or active contracts can be amended"
)

func StateOf(c *model.Contract) State {
	return State{
		Status:          c.Status,
		HasAnySignature: c.HasAnySignature(),
		Deleted:         c.IsDeleted(),
	}
}

func allow() Decision { return Decision{Allowed: true} }

func deny(message string) Decision { return Decision{Allowed: false, Message: message} }

// CanEdit covers commercial terms, clauses and content.
func CanEdit(s State) Decision {
	if s.Deleted {
		return deny(msgDeleted)
	}
	switch s.Status {
	case model.ContractStatusSigned, model.ContractStatusActive:
		return deny(msgSigned)
	case model.ContractStatusTerminated, model.ContractStatusRevoked:
		return deny(msgClosed)
	case model.ContractStatusAwaitingSignatures:
		return deny(msgAwaiting)
	}
	if s.HasAnySignature {
		return deny(msgAwaiting)
	}
	return allow()
}

// CanEditMetadata covers administrative fields that never reach the signed document.
func CanEditMetadata(s State) Decision {
	if s.Deleted {
		return deny(msgDeleted)
	}
	return allow()
}

func CanDelete(s State) Decision {
	if s.Deleted {
		return deny(msgDeleted)
	}
	if s.HasAnySignature {
		return deny(msgDeleteSigned)
	}
	switch s.Status {
	case model.ContractStatusPending, model.ContractStatusRevoked:
		return allow()
	case model.ContractStatusAwaitingSignatures:
		return deny(msgDeleteSigned)
	case model.ContractStatusSigned, model.ContractStatusActive:
		return deny(msgSigned)
	}
	return deny(msgClosed)
}

func CanAmend(s State) Decision {
	if s.Deleted {
		return deny(msgDeleted)
	}
	switch s.Status {
	case model.ContractStatusSigned, model.ContractStatusActive:
		return allow()
	case model.ContractStatusPending:
		if !s.HasAnySignature {
			return deny(msgStillPending)
		}
	}
	return deny(msgNotAmendable)
}
