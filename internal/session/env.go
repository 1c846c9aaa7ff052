package session

import (
	"strconv"

	"github.com/reviewpilot/reviewpilot/internal/auth"
	"github.com/reviewpilot/reviewpilot/internal/config"
)

// Names of the variables handed to the agent process. They line up with
// the config keys so the agent's reviewpilot calls load them unchanged.
const (
	EnvToken         = config.EnvPrefix + "DEVOPS_TOKEN"
	EnvAuthScheme    = config.EnvPrefix + "DEVOPS_AUTH_SCHEME"
	EnvCollectionURI = config.EnvPrefix + "DEVOPS_COLLECTION_URI"
	EnvProject       = config.EnvPrefix + "DEVOPS_PROJECT"
	EnvRepository    = config.EnvPrefix + "DEVOPS_REPOSITORY"
	EnvPullRequestID = config.EnvPrefix + "DEVOPS_PULL_REQUEST_ID"
	EnvIterationID   = config.EnvPrefix + "DEVOPS_ITERATION_ID"
)

// AgentEnv is the context the agent needs to call back into the review
// service. It only reaches the process environment through Environ.
type AgentEnv struct {
	Credential    auth.Credential
	CollectionURI string
	Project       string
	Repository    string
	PullRequestID int
	IterationID   int
}

// Environ renders the context as KEY=VALUE pairs
func (e AgentEnv) Environ() []string {
	out := []string{
		EnvToken + "=" + e.Credential.Secret(),
		EnvAuthScheme + "=" + string(e.Credential.Scheme()),
		EnvCollectionURI + "=" + e.CollectionURI,
		EnvProject + "=" + e.Project,
		EnvRepository + "=" + e.Repository,
		EnvPullRequestID + "=" + strconv.Itoa(e.PullRequestID),
	}
	if e.IterationID > 0 {
		out = append(out, EnvIterationID+"="+strconv.Itoa(e.IterationID))
	}
	return out
}
