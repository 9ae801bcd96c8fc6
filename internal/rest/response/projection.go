package response

import (
	"time"

	"github.com/Guyuepp/popularity-service/domain"
)

type Projection struct {
	ID          string   `json:"id"`
	OwnerID     string   `json:"userId"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Likes       int64    `json:"likes"`
	LikesList   []string `json:"likesList"`
	LikesDay    int64    `json:"likesDay"`
	LikesWeek   int64    `json:"likesWeek"`
	CreatedAt   string   `json:"createdAt"`
}

func NewProjectionFromDomain(p *domain.Projection) Projection {
	list := p.LikesList
	if list == nil {
		list = []string{}
	}
	return Projection{
		ID:          p.ID,
		OwnerID:     p.OwnerID,
		Title:       p.Title,
		Description: p.Description,
		Likes:       p.Likes,
		LikesList:   list,
		LikesDay:    p.LikesDay,
		LikesWeek:   p.LikesWeek,
		CreatedAt:   p.CreatedAt.UTC().Format(time.RFC3339),
	}
}

type DecayResult struct {
	Window      string `json:"window"`
	BucketStart string `json:"bucketStart"`
	Items       int    `json:"items"`
	Failed      int    `json:"failed"`
}

func NewDecayResultFromDomain(r *domain.DecayResult) DecayResult {
	return DecayResult{
		Window:      string(r.Window),
		BucketStart: r.BucketStart.UTC().Format(time.RFC3339),
		Items:       r.Items,
		Failed:      r.Failed,
	}
}
