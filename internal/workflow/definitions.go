package workflow

import (
	"time"

	"github.com/abdulachik/linkrunner/internal/backend"
	"github.com/abdulachik/linkrunner/internal/backend/brightdata"
	"github.com/abdulachik/linkrunner/internal/backend/linkedin"
	"github.com/abdulachik/linkrunner/internal/backend/phantombuster"
	"github.com/abdulachik/linkrunner/internal/config"
	"github.com/abdulachik/linkrunner/internal/request"
)

// Workflow names.
const (
	CreatePost                       = "create-post"
	GetProfile                       = "get-profile"
	GetProfilePosts                  = "get-profile-posts"
	GetProfileReactions              = "get-profile-reactions"
	GetProfileReactionsPhantomBuster = "get-profile-reactions-phantombuster"
	SaveLead                         = "save-lead"
)

const reactionsUnsupported = "Scraping reactions from a LinkedIn profile is a premium feature " +
	"and is not yet supported in this implementation."

// Defaults returns the built-in workflows.
func Defaults() []Definition {
	return []Definition{
		{
			Name:        CreatePost,
			Description: "Create a post on LinkedIn",
			Schema:      request.PostSchema,
			Parse:       request.ParsePost,
			Backend:     newLinkedInPoster,
			Timeout:     120 * time.Second,
		},
		{
			Name:        GetProfile,
			Description: "Get a LinkedIn profile",
			Schema:      request.ProfileSchema,
			Parse:       request.ParseProfile,
			Backend:     newBrightDataProfile,
			Timeout:     120 * time.Second,
		},
		{
			Name:        GetProfilePosts,
			Description: "Get a LinkedIn profile's posts",
			Schema:      request.ProfileSchema,
			Parse:       request.ParseProfile,
			Backend:     newBrightDataPosts,
			Timeout:     120 * time.Second,
		},
		{
			Name:        GetProfileReactions,
			Description: "Get a LinkedIn profile's reactions (Not Implemented)",
			Schema:      request.ProfileSchema,
			Parse:       request.ParseProfile,
			Backend:     newReactionsStub,
			Timeout:     60 * time.Second,
		},
		{
			Name:        GetProfileReactionsPhantomBuster,
			Description: "Get a LinkedIn profile's reactions with PhantomBuster",
			Schema:      request.ProfileSchema,
			Parse:       request.ParseProfile,
			Backend:     newPhantomBusterReactions,
			Timeout:     120 * time.Second,
		},
		{
			Name:        SaveLead,
			Description: "Save a LinkedIn profile as a PhantomBuster lead",
			Schema:      request.LeadSchema,
			Parse:       request.ParseLead,
			Backend:     newPhantomBusterLeads,
			Timeout:     60 * time.Second,
		},
	}
}

func newLinkedInPoster(cfg *config.Config) (backend.Adapter, error) {
	if err := cfg.ValidateForLinkedIn(); err != nil {
		return nil, err
	}
	return linkedin.NewPoster(linkedin.Config{
		AccessToken: cfg.LinkedInAccessToken,
		AuthorURN:   cfg.LinkedInAuthorURN,
		BaseURL:     cfg.LinkedInBaseURL,
	})
}

func newBrightDataProfile(cfg *config.Config) (backend.Adapter, error) {
	if err := cfg.ValidateForBrightData(); err != nil {
		return nil, err
	}
	return brightdata.NewProfileAdapter(brightdata.Config{
		APIToken:  cfg.BrightDataAPIToken,
		DatasetID: cfg.BrightDataProfileDatasetID,
		BaseURL:   cfg.BrightDataBaseURL,
	})
}

func newBrightDataPosts(cfg *config.Config) (backend.Adapter, error) {
	if err := cfg.ValidateForBrightData(); err != nil {
		return nil, err
	}
	return brightdata.NewPostsAdapter(brightdata.Config{
		APIToken:  cfg.BrightDataAPIToken,
		DatasetID: cfg.BrightDataPostsDatasetID,
		BaseURL:   cfg.BrightDataBaseURL,
	})
}

func newReactionsStub(cfg *config.Config) (backend.Adapter, error) {
	return backend.NewUnsupported("reactions", reactionsUnsupported), nil
}

func newPhantomBusterReactions(cfg *config.Config) (backend.Adapter, error) {
	if err := cfg.ValidateForPhantomBusterReactions(); err != nil {
		return nil, err
	}
	return phantombuster.NewReactionsAdapter(phantombuster.Config{
		APIKey:        cfg.PhantomBusterAPIKey,
		AgentID:       cfg.PhantomBusterReactionsAgentID,
		SessionCookie: cfg.LinkedInSessionCookie,
		BaseURL:       cfg.PhantomBusterBaseURL,
	})
}

func newPhantomBusterLeads(cfg *config.Config) (backend.Adapter, error) {
	if err := cfg.ValidateForPhantomBusterLeads(); err != nil {
		return nil, err
	}
	return phantombuster.NewLeadsAdapter(phantombuster.Config{
		APIKey:  cfg.PhantomBusterAPIKey,
		BaseURL: cfg.PhantomBusterBaseURL,
	})
}
