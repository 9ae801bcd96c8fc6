package rest

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Guyuepp/popularity-service/domain"
	"github.com/Guyuepp/popularity-service/internal/rest/response"
)

// AdminHandler exposes operator actions: manual decay runs and item reconciliation.
type AdminHandler struct {
	Decay  domain.DecayUsecase
	Syncer domain.CounterSyncer

	now func() time.Time
}

func NewAdminHandler(decay domain.DecayUsecase, syncer domain.CounterSyncer) *AdminHandler {
	return &AdminHandler{
		Decay:  decay,
		Syncer: syncer,
		now:    time.Now,
	}
}

// RunDecay catches the window up to now. With ?bucket=<RFC3339> it replays
// that single bucket instead, without touching the cursor.
func (h *AdminHandler) RunDecay(c *gin.Context) {
	w, err := domain.ParseWindow(c.Param("window"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
		return
	}
	ctx := c.Request.Context()

	var results []domain.DecayResult
	if b := c.Query("bucket"); b != "" {
		start, perr := time.Parse(time.RFC3339, b)
		if perr != nil || !start.Equal(start.Truncate(domain.BucketWidth)) {
			c.JSON(http.StatusBadRequest, ResponseError{Message: "bucket must be an hour-aligned RFC3339 timestamp"})
			return
		}
		var r domain.DecayResult
		r, err = h.Decay.DecayBucket(ctx, w, start)
		results = []domain.DecayResult{r}
	} else {
		results, err = h.Decay.Run(ctx, w, h.now())
	}
	if err != nil {
		c.JSON(getStatusCode(err), ResponseError{Message: err.Error()})
		return
	}

	res := make([]response.DecayResult, len(results))
	for i := range results {
		res[i] = response.NewDecayResultFromDomain(&results[i])
	}
	c.JSON(http.StatusOK, res)
}

// Reconcile rebuilds the projection of one item from the authoritative store.
func (h *AdminHandler) Reconcile(c *gin.Context) {
	if err := h.Syncer.Reconcile(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(getStatusCode(err), ResponseError{Message: err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}
