package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MrWong99/aurasync/internal/profile"
	"github.com/MrWong99/aurasync/pkg/types"
)

type handlers struct {
	svc      Assistant
	profiles profile.Store
}

type onboardingRequest struct {
	ComprehensionBreak profile.ComprehensionBreak `json:"comprehensionBreak"`
	LearningPreference profile.LearningPreference `json:"learningPreference"`
	ListeningThought   profile.ListeningThought   `json:"listeningThought"`
	StruggleNote       string                     `json:"struggleNote"`
	UIPreferences      profile.UIPreferences      `json:"uiPreferences"`
}

type onboardingResponse struct {
	Success   bool   `json:"success"`
	ProfileID string `json:"profileId"`
}

func (h *handlers) createProfile(c *gin.Context) {
	var req onboardingRequest
	if !bind(c, &req) {
		return
	}
	p, err := h.profiles.Create(c.Request.Context(), profile.Profile{
		Onboarding: profile.Onboarding{
			ComprehensionBreak: req.ComprehensionBreak,
			LearningPreference: req.LearningPreference,
			ListeningThought:   req.ListeningThought,
			StruggleNote:       req.StruggleNote,
		},
		UIPreferences: req.UIPreferences,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, onboardingResponse{Success: true, ProfileID: p.ID})
}

func (h *handlers) getProfile(c *gin.Context) {
	p, err := h.profiles.Get(c.Request.Context(), c.Param("profileId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

type assistRequest struct {
	ProfileID string `json:"profileId"`
	Text      string `json:"text"`
}

func (h *handlers) assist(c *gin.Context) {
	var req assistRequest
	if !bind(c, &req) {
		return
	}
	if req.ProfileID == "" || req.Text == "" {
		badRequest(c, "profileId and text are required")
		return
	}
	p, err := h.profiles.Get(c.Request.Context(), req.ProfileID)
	if err != nil {
		respondError(c, err)
		return
	}
	res, err := h.svc.Assist(c.Request.Context(), req.Text, p)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type contextRequest struct {
	Query          string               `json:"query"`
	PreviousResult *types.ReducedResult `json:"previousResult"`
}

func (h *handlers) continueContext(c *gin.Context) {
	var req contextRequest
	if !bind(c, &req) {
		return
	}
	if req.Query == "" || req.PreviousResult == nil {
		badRequest(c, "query and previousResult are required")
		return
	}
	res, err := h.svc.Continue(c.Request.Context(), req.Query, *req.PreviousResult)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type turnRequest struct {
	ProfileID    string `json:"profileId"`
	Text         string `json:"text"`
	AllowVisuals *bool  `json:"allowVisuals"`
}

func (h *handlers) turn(c *gin.Context) {
	var req turnRequest
	if !bind(c, &req) {
		return
	}
	if req.ProfileID == "" || req.Text == "" {
		badRequest(c, "profileId and text are required")
		return
	}
	p, err := h.profiles.Get(c.Request.Context(), req.ProfileID)
	if err != nil {
		respondError(c, err)
		return
	}
	res, err := h.svc.Turn(c.Request.Context(), req.Text, p, allowed(req.AllowVisuals))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type mermaidRequest struct {
	Simplified      string    `json:"simplified"`
	KeyPoints       *[]string `json:"keyPoints"`
	UserPreferences struct {
		AllowVisuals *bool `json:"allowVisuals"`
	} `json:"userPreferences"`
}

func (h *handlers) mermaid(c *gin.Context) {
	var req mermaidRequest
	if !bind(c, &req) {
		return
	}
	if req.Simplified == "" || req.KeyPoints == nil {
		badRequest(c, "simplified and a keyPoints array are required")
		return
	}
	res, err := h.svc.Diagram(c.Request.Context(), req.Simplified, *req.KeyPoints, allowed(req.UserPreferences.AllowVisuals))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// allowed treats an absent preference as consent; only an explicit false
// disables visuals.
func allowed(b *bool) bool {
	return b == nil || *b
}
