package runtime

// Route is the result of resolving an inbound sender to an agent session.
type Route struct {
	AgentID    string
	AccountID  string
	SessionKey string
}

// ResolveRoute maps a channel, account and sender onto an agent route. The
// session key is stable per (channel, account, sender) so conversation state
// survives restarts.
func (rt *Runtime) ResolveRoute(channel, accountID, sender string) Route {
	if accountID == "" {
		accountID = "default"
	}

	agentID := rt.Config().Routes[channel]
	if agentID == "" {
		agentID = "default"
	}

	return Route{
		AgentID:    agentID,
		AccountID:  accountID,
		SessionKey: channel + ":" + accountID + ":" + sender,
	}
}
