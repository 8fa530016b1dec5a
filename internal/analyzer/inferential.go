package analyzer

import (
	"fmt"
	"math"
	"time"
	"unicode/utf8"

	"github.com/async-research/youtube-scraper/internal/models"
)

// |t| above this is reported as significant; close to the 95% two-sided value
// for any reasonable sample size.
const criticalValue = 2.0

type InferentialAnalyzer struct {
	videos []models.Video
}

func NewInferentialAnalyzer(videos []models.Video) *InferentialAnalyzer {
	return &InferentialAnalyzer{
		videos: videos,
	}
}

// CorrelationAnalysis returns Pearson coefficients against views. A pair is left
// out when fewer than two videos carry both values or either side is constant.
func (a *InferentialAnalyzer) CorrelationAnalysis() map[string]float64 {
	results := make(map[string]float64)

	if corr, ok := a.correlate(func(v models.Video) (float64, bool) { return available(v.Likes) }); ok {
		results["likes_vs_views"] = corr
	}

	if corr, ok := a.correlate(func(v models.Video) (float64, bool) { return available(v.Dislikes) }); ok {
		results["dislikes_vs_views"] = corr
	}

	if corr, ok := a.correlate(func(v models.Video) (float64, bool) {
		return float64(utf8.RuneCountInString(v.Title)), true
	}); ok {
		results["title_length_vs_views"] = corr
	}

	return results
}

func (a *InferentialAnalyzer) correlate(field func(models.Video) (float64, bool)) (float64, bool) {
	var xs, ys []float64
	for _, v := range a.videos {
		x, ok := field(v)
		if !ok {
			continue
		}
		y, ok := Views(v)
		if !ok {
			continue
		}
		xs = append(xs, x)
		ys = append(ys, y)
	}
	return pearson(xs, ys)
}

func pearson(xs, ys []float64) (float64, bool) {
	if len(xs) < 2 || len(xs) != len(ys) {
		return 0, false
	}

	mx, my := mean(xs), mean(ys)
	var sxy, sxx, syy float64
	for i := range xs {
		dx, dy := xs[i]-mx, ys[i]-my
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	if sxx == 0 || syy == 0 {
		return 0, false
	}
	return sxy / math.Sqrt(sxx*syy), true
}

type TTestResult struct {
	Group1Name       string
	Group1Mean       float64
	Group1StdDev     float64
	Group1Count      int
	Group2Name       string
	Group2Mean       float64
	Group2StdDev     float64
	Group2Count      int
	TStatistic       float64
	DegreesOfFreedom float64
	Significant      bool
	Interpretation   string
}

// RecentVsOlderTTest compares the views of videos uploaded on or after cutoff with
// those uploaded before it, using Welch's t-test.
func (a *InferentialAnalyzer) RecentVsOlderTTest(cutoff time.Time) *TTestResult {
	var recent, older []float64
	for _, v := range a.videos {
		n, ok := Views(v)
		if !ok || v.UploadDate.IsZero() {
			continue
		}
		if v.UploadDate.Before(cutoff) {
			older = append(older, n)
		} else {
			recent = append(recent, n)
		}
	}

	return welch(
		fmt.Sprintf("Uploaded since %s", cutoff.Format("2006-01-02")), recent,
		fmt.Sprintf("Uploaded before %s", cutoff.Format("2006-01-02")), older,
	)
}

// ListedVsUnlistedTTest compares the views of listed and unlisted videos.
func (a *InferentialAnalyzer) ListedVsUnlistedTTest() *TTestResult {
	var listed, unlisted []float64
	for _, v := range a.videos {
		n, ok := Views(v)
		if !ok {
			continue
		}
		if v.IsUnlisted {
			unlisted = append(unlisted, n)
		} else {
			listed = append(listed, n)
		}
	}
	return welch("Listed", listed, "Unlisted", unlisted)
}

func welch(name1 string, group1 []float64, name2 string, group2 []float64) *TTestResult {
	result := &TTestResult{
		Group1Name:  name1,
		Group1Count: len(group1),
		Group1Mean:  mean(group1),
		Group2Name:  name2,
		Group2Count: len(group2),
		Group2Mean:  mean(group2),
	}

	var1, var2 := variance(group1), variance(group2)
	result.Group1StdDev = math.Sqrt(var1)
	result.Group2StdDev = math.Sqrt(var2)

	if result.Group1Count < 2 || result.Group2Count < 2 {
		result.Interpretation = "Insufficient data for statistical analysis"
		return result
	}

	v1 := var1 / float64(result.Group1Count)
	v2 := var2 / float64(result.Group2Count)
	se := math.Sqrt(v1 + v2)
	if se == 0 {
		result.Interpretation = "Insufficient variance for statistical analysis"
		return result
	}

	meanDiff := result.Group1Mean - result.Group2Mean
	result.TStatistic = meanDiff / se
	result.DegreesOfFreedom = math.Pow(v1+v2, 2) /
		(math.Pow(v1, 2)/float64(result.Group1Count-1) +
			math.Pow(v2, 2)/float64(result.Group2Count-1))

	result.Significant = math.Abs(result.TStatistic) > criticalValue

	if result.Significant {
		if meanDiff > 0 {
			result.Interpretation = fmt.Sprintf("%s videos have significantly more views than %s videos",
				result.Group1Name, result.Group2Name)
		} else {
			result.Interpretation = fmt.Sprintf("%s videos have significantly more views than %s videos",
				result.Group2Name, result.Group1Name)
		}
	} else {
		result.Interpretation = fmt.Sprintf("No significant difference between %s and %s videos",
			result.Group1Name, result.Group2Name)
	}

	return result
}
