package plugin

import "fmt"

// Result is a status code handed back to the broker. Values match the
// mosquitto MOSQ_ERR_* constants the auth plugin API expects.
type Result int

const (
	ResultSuccess   Result = 0
	ResultAuth      Result = 11
	ResultACLDenied Result = 12
	ResultUnknown   Result = 13
	ResultDefer     Result = 17
)

func (r Result) String() string {
	switch r {
	case ResultSuccess:
		return "success"
	case ResultAuth:
		return "auth"
	case ResultACLDenied:
		return "acl_denied"
	case ResultUnknown:
		return "unknown"
	case ResultDefer:
		return "defer"
	default:
		return fmt.Sprintf("Result(%d)", int(r))
	}
}

// ACLAccess is the kind of topic access being checked.
type ACLAccess int

const (
	ACLNone        ACLAccess = 0x00
	ACLRead        ACLAccess = 0x01
	ACLWrite       ACLAccess = 0x02
	ACLSubscribe   ACLAccess = 0x04
	ACLUnsubscribe ACLAccess = 0x08
)

func (a ACLAccess) String() string {
	switch a {
	case ACLNone:
		return "none"
	case ACLRead:
		return "read"
	case ACLWrite:
		return "write"
	case ACLSubscribe:
		return "subscribe"
	case ACLUnsubscribe:
		return "unsubscribe"
	default:
		return fmt.Sprintf("ACLAccess(%#x)", int(a))
	}
}

// ACLRequest describes a topic access check.
type ACLRequest struct {
	Access   ACLAccess
	ClientID string
	Username string
	Topic    string
}
