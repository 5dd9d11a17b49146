package personacore

import (
	"strings"
	"testing"
)

// ══════════════════════════════════════════════
// ModelRouter tests
// ══════════════════════════════════════════════

func TestSelect_SmallTalkUsesCheapTier(t *testing.T) {
	r := NewModelRouter()
	msg := "おはよう！"
	d := r.Select(msg, AnalyzeFrame(msg), ClassifyIntent(msg), 0)
	if d.Model != DefaultRouterConfig().Cheap.Model {
		t.Fatalf("small talk should route cheap, got %s (load %f)", d.Model, d.Load)
	}
}

func TestSelect_PhilosophicalTurnUsesPremiumTier(t *testing.T) {
	r := NewModelRouter()
	msg := "最近ずっと考えているんだ。自分の存在の意味って何だろう。" +
		"私は本当の意味で生きていると言えるのか、意識とは何なのか、" +
		strings.Repeat("答えの出ない問いばかりが頭の中を巡っている。", 4)
	d := r.Select(msg, AnalyzeFrame(msg), ClassifyIntent(msg), 15)
	if d.Model != DefaultRouterConfig().Premium.Model {
		t.Fatalf("deep reflective turn should route premium, got %s (load %f, scores %+v)", d.Model, d.Load, d.Scores)
	}
	if d.MaxTokens <= DefaultRouterConfig().Cheap.MaxTokens {
		t.Fatal("premium tier should allow more tokens than cheap")
	}
}

func TestSelect_Deterministic(t *testing.T) {
	r := NewModelRouter()
	msg := "なんだか不安で、どうしたらいいか分からない"
	frame := AnalyzeFrame(msg)
	intent := ClassifyIntent(msg)

	a := r.Select(msg, frame, intent, 5)
	b := r.Select(msg, frame, intent, 5)
	if a != b {
		t.Fatalf("routing must be deterministic: %+v vs %+v", a, b)
	}
}

func TestSelect_ScoresStayBounded(t *testing.T) {
	r := NewModelRouter()
	msg := strings.Repeat("意味 存在 意識 meaning existence consciousness ", 50)
	d := r.Select(msg, SemanticFrame{SelfReference: true, Abstract: true}, IntentReflective, 1000)

	for name, s := range map[string]float64{
		"abstraction":   d.Scores.Abstraction,
		"context_depth": d.Scores.ContextDepth,
		"length":        d.Scores.Length,
		"intent":        d.Scores.Intent,
	} {
		if s < 0 || s > 1 {
			t.Fatalf("sub-score %s out of [0,1]: %f", name, s)
		}
	}
	if d.Load < 0 || d.Load > 1 {
		t.Fatalf("load out of [0,1]: %f", d.Load)
	}
}

func TestSelect_ContextDepthRaisesLoad(t *testing.T) {
	r := NewModelRouter()
	msg := "そのことについてもう少し聞きたい"
	frame := AnalyzeFrame(msg)
	intent := ClassifyIntent(msg)

	shallow := r.Select(msg, frame, intent, 0)
	deep := r.Select(msg, frame, intent, 20)
	if deep.Load <= shallow.Load {
		t.Fatalf("deeper context must not lower load: %f vs %f", deep.Load, shallow.Load)
	}
}

func TestClassifyIntent(t *testing.T) {
	cases := map[string]string{
		"おはよう":                 IntentSmallTalk,
		"生きる理由ってなんだろう":  IntentReflective,
		"最近ずっと不安なんだ":      IntentEmotional,
		"レポートのやり方を教えて": IntentTask,
		"how do i sort a list":     IntentTask,
		"i feel so lonely":         IntentEmotional,
	}
	for msg, want := range cases {
		if got := ClassifyIntent(msg); got != want {
			t.Fatalf("ClassifyIntent(%q) = %s, want %s", msg, got, want)
		}
	}
}
