package analyzer

import (
	"math"
	"sort"
	"strconv"

	"github.com/async-research/youtube-scraper/internal/models"
)

// DescriptiveAnalyzer summarises a set of scraped videos. Counts equal to
// models.Unavailable and unparseable view counts are left out of every figure.
type DescriptiveAnalyzer struct {
	videos []models.Video
}

func NewDescriptiveAnalyzer(videos []models.Video) *DescriptiveAnalyzer {
	return &DescriptiveAnalyzer{
		videos: videos,
	}
}

// Views parses the view count of a video.
func Views(v models.Video) (float64, bool) {
	n, err := strconv.ParseInt(v.ViewCount, 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return float64(n), true
}

func available(n int) (float64, bool) {
	if n == models.Unavailable {
		return 0, false
	}
	return float64(n), true
}

func (a *DescriptiveAnalyzer) BasicStatistics() map[string]interface{} {
	stats := make(map[string]interface{})
	stats["total_videos"] = len(a.videos)

	categories := make(map[string]struct{})
	var likes, dislikes, views []float64
	unlisted := 0
	for _, v := range a.videos {
		categories[v.Category] = struct{}{}
		if n, ok := available(v.Likes); ok {
			likes = append(likes, n)
		}
		if n, ok := available(v.Dislikes); ok {
			dislikes = append(dislikes, n)
		}
		if n, ok := Views(v); ok {
			views = append(views, n)
		}
		if v.IsUnlisted {
			unlisted++
		}
	}

	stats["unique_categories"] = len(categories)
	stats["unlisted"] = unlisted
	stats["with_likes"] = len(likes)
	stats["with_dislikes"] = len(dislikes)
	stats["avg_likes"] = mean(likes)
	stats["avg_dislikes"] = mean(dislikes)
	stats["avg_views"] = mean(views)
	stats["max_views"] = maxOf(views)
	stats["total_views"] = sum(views)

	return stats
}

// GetTopVideos returns up to limit videos ordered by views, most viewed first.
func (a *DescriptiveAnalyzer) GetTopVideos(limit int) []models.Video {
	type ranked struct {
		video models.Video
		views float64
	}

	var candidates []ranked
	for _, v := range a.videos {
		if n, ok := Views(v); ok {
			candidates = append(candidates, ranked{video: v, views: n})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].views > candidates[j].views
	})

	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	top := make([]models.Video, len(candidates))
	for i, c := range candidates {
		top[i] = c.video
	}
	return top
}

type CategoryStats struct {
	Category   string
	VideoCount int
	AvgViews   float64
	AvgLikes   float64
}

// GetCategoryBreakdown groups videos by category, largest group first.
func (a *DescriptiveAnalyzer) GetCategoryBreakdown() []CategoryStats {
	type acc struct {
		count        int
		views, likes []float64
	}

	groups := make(map[string]*acc)
	for _, v := range a.videos {
		g, ok := groups[v.Category]
		if !ok {
			g = &acc{}
			groups[v.Category] = g
		}
		g.count++
		if n, ok := Views(v); ok {
			g.views = append(g.views, n)
		}
		if n, ok := available(v.Likes); ok {
			g.likes = append(g.likes, n)
		}
	}

	breakdown := make([]CategoryStats, 0, len(groups))
	for name, g := range groups {
		breakdown = append(breakdown, CategoryStats{
			Category:   name,
			VideoCount: g.count,
			AvgViews:   mean(g.views),
			AvgLikes:   mean(g.likes),
		})
	}
	sort.Slice(breakdown, func(i, j int) bool {
		if breakdown[i].VideoCount != breakdown[j].VideoCount {
			return breakdown[i].VideoCount > breakdown[j].VideoCount
		}
		return breakdown[i].Category < breakdown[j].Category
	})
	return breakdown
}

type Distribution struct {
	Count        int
	Min          float64
	Max          float64
	Mean         float64
	Median       float64
	StdDev       float64
	Percentile25 float64
	Percentile75 float64
}

func (a *DescriptiveAnalyzer) GetViewsDistribution() *Distribution {
	var views []float64
	for _, v := range a.videos {
		if n, ok := Views(v); ok {
			views = append(views, n)
		}
	}
	return distribution(views)
}

func (a *DescriptiveAnalyzer) GetLikesDistribution() *Distribution {
	var likes []float64
	for _, v := range a.videos {
		if n, ok := available(v.Likes); ok {
			likes = append(likes, n)
		}
	}
	return distribution(likes)
}

func distribution(values []float64) *Distribution {
	dist := &Distribution{Count: len(values)}
	if len(values) == 0 {
		return dist
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	dist.Min = sorted[0]
	dist.Max = sorted[len(sorted)-1]
	dist.Mean = mean(sorted)
	dist.StdDev = math.Sqrt(variance(sorted))
	dist.Median = percentile(sorted, 0.5)
	dist.Percentile25 = percentile(sorted, 0.25)
	dist.Percentile75 = percentile(sorted, 0.75)
	return dist
}

func sum(values []float64) float64 {
	total := 0.0
	for _, v := range values {
		total += v
	}
	return total
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return sum(values) / float64(len(values))
}

func maxOf(values []float64) float64 {
	m := 0.0
	for i, v := range values {
		if i == 0 || v > m {
			m = v
		}
	}
	return m
}

// variance is the sample variance; it is zero for fewer than two values.
func variance(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	ss := 0.0
	for _, v := range values {
		ss += (v - m) * (v - m)
	}
	return ss / float64(len(values)-1)
}

// percentile interpolates linearly between closest ranks of sorted values.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	pos := p * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	return sorted[lo] + (pos-float64(lo))*(sorted[hi]-sorted[lo])
}
