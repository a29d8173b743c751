package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"music-copilot-go/internal/capability"
	"music-copilot-go/internal/model"
)

func call(t *testing.T, reg *capability.Registry, name string, args map[string]any) map[string]any {
	t.Helper()
	d, err := reg.Resolve(name)
	require.NoError(t, err)
	result, _ := capability.Call(context.Background(), d, args)
	return result
}

func newRegistry(t *testing.T, opts ...Option) *capability.Registry {
	t.Helper()
	reg := capability.NewRegistry()
	require.NoError(t, Register(reg, opts...))
	return reg
}

func TestRegister(t *testing.T) {
	reg := newRegistry(t)
	assert.Equal(t, 11, reg.Len())
	_, err := reg.Resolve(SearchKnowledgeBase)
	assert.ErrorIs(t, err, capability.ErrNotFound)

	withKB := newRegistry(t, WithKnowledgeBase(fakeSearcher{}))
	assert.Equal(t, 12, withKB.Len())
}

func TestGetTrendingTopics_SortedAndLimited(t *testing.T) {
	result := call(t, newRegistry(t), GetTrendingTopics, map[string]any{"limit": float64(3)})
	topics := result["topics"].([]any)
	require.Len(t, topics, 3)
	assert.Equal(t, "春天的第一缕阳光", topics[0].(map[string]any)["title"])
	assert.Equal(t, 3, result["total_count"])

	filtered := call(t, newRegistry(t), GetTrendingTopics, map[string]any{"platform": "抖音"})
	assert.Equal(t, 2, filtered["total_count"])
}

func TestGenerateSongInspiration(t *testing.T) {
	reg := newRegistry(t)
	result := call(t, reg, GenerateSongInspiration, map[string]any{"topic": "旅行", "style": "民谣"})
	names := result["song_names"].([]string)
	require.Len(t, names, 5)
	for _, n := range names {
		assert.Contains(t, n, "旅行")
		assert.Contains(t, n, "《")
	}
	assert.Equal(t, []string{"陈鸿宇", "房东的猫", "花粥"}, result["reference_artists"])

	again := call(t, reg, GenerateSongInspiration, map[string]any{"topic": "旅行"})
	assert.Equal(t, names, again["song_names"])

	missing := call(t, reg, GenerateSongInspiration, map[string]any{})
	assert.True(t, capability.IsError(missing))
}

func TestRecommendSongsToPromote(t *testing.T) {
	result := call(t, newRegistry(t), RecommendSongsToPromote, map[string]any{"budget": float64(2000)})
	recs := result["recommendations"].([]any)
	require.Len(t, recs, 3)

	first := recs[0].(map[string]any)
	assert.Equal(t, "凌晨三点半", first["song"].(map[string]any)["name"])
	assert.Equal(t, float64(1000), first["suggested_budget"])
	assert.Equal(t, float64(400), recs[2].(map[string]any)["suggested_budget"])
	assert.Contains(t, result["diagnosis"], "有 3 首歌")
}

func TestGeneratePromotionPlan(t *testing.T) {
	result := call(t, newRegistry(t), GeneratePromotionPlan, map[string]any{"song_name": "海边的风", "budget": float64(700)})
	plan := result["plan"].(map[string]any)
	assert.Equal(t, float64(100), plan["daily_budget"])
	assert.Equal(t, "7 天", plan["duration"])
}

func TestExplainMetricChange_FallsBackToPlays(t *testing.T) {
	result := call(t, newRegistry(t), ExplainMetricChange, map[string]any{"metric": "收藏数"})
	assert.Equal(t, "收藏数", result["metric"])
	assert.Equal(t, "+35.0%", result["change_rate"])

	income := call(t, newRegistry(t), ExplainMetricChange, map[string]any{"metric": "收入"})
	assert.Equal(t, "下降", income["direction"])
	assert.Equal(t, "数据仅供参考，如有疑问可联系客服核实", income["suggestion"])
}

func TestSearchKnowledge(t *testing.T) {
	reg := newRegistry(t)
	result := call(t, reg, SearchKnowledge, map[string]any{"query": "结算多久到账"})
	results := result["results"].([]any)
	require.NotEmpty(t, results)
	assert.LessOrEqual(t, len(results), 3)
	assert.Equal(t, "high", results[0].(map[string]any)["relevance"])

	fallback := call(t, reg, SearchKnowledge, map[string]any{"query": "hello world"})
	first := fallback["results"].([]any)[0].(map[string]any)
	assert.Equal(t, "medium", first["relevance"])
	assert.Equal(t, "入驻", first["category"])
}

func TestCheckUploadCompliance(t *testing.T) {
	reg := newRegistry(t)
	ok := call(t, reg, CheckUploadCompliance, map[string]any{"audio_format": "wav"})
	assert.Equal(t, true, ok["can_upload"])

	bad := call(t, reg, CheckUploadCompliance, map[string]any{
		"audio_format":      "ogg",
		"sample_rate":       float64(22050),
		"cover_size":        "800x800",
		"has_composer_info": false,
	})
	assert.Equal(t, false, bad["can_upload"])
	assert.Len(t, bad["issues"], 4)
	assert.Equal(t, "❌ 存在 4 个问题需要修复", bad["summary"])
}

type fakeSearcher struct {
	hits []model.KnowledgeHit
	err  error
}

func (f fakeSearcher) Search(ctx context.Context, query string, topK int) ([]model.KnowledgeHit, error) {
	return f.hits, f.err
}

func TestSearchKnowledgeBase(t *testing.T) {
	reg := newRegistry(t, WithKnowledgeBase(fakeSearcher{hits: []model.KnowledgeHit{
		{DocumentID: "d1", Title: "结算手册", Content: "每月 15 日出账", Score: 2.5},
	}}))
	result := call(t, reg, SearchKnowledgeBase, map[string]any{"query": "出账时间"})
	assert.Equal(t, 1, result["total_found"])

	failing := newRegistry(t, WithKnowledgeBase(fakeSearcher{err: errors.New("es down")}))
	result = call(t, failing, SearchKnowledgeBase, map[string]any{"query": "出账时间"})
	assert.True(t, capability.IsError(result))
}
