package tools

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"music-copilot-go/internal/capability"
)

type faq struct {
	Question string
	Answer   string
	Source   string
}

type faqCategory struct {
	Name     string
	Items    []faq
	Keywords []string // 命中即视为相关
	Hints    []string // 无精确命中时用于猜测分类
}

var faqCategories = []faqCategory{
	{
		Name: "入驻",
		Items: []faq{
			{"如何成为腾讯音乐人？", "1. 访问音乐人开放平台官网或小程序\n2. 选择身份类型（原创音乐人 / 翻唱歌手 / 制作人 / 厂牌）\n3. 填写基本信息并上传身份证明\n4. 提交至少 1 首原创作品\n5. 等待审核（通常 3-5 个工作日）", "入驻指南"},
			{"入驻需要什么条件？", "个人入驻需要：\n- 年满 18 岁（未满 18 需监护人签字）\n- 有效身份证件\n- 至少 1 首完整原创音乐作品\n- 作品不含侵权内容\n\n机构入驻额外需要：\n- 营业执照\n- 法人授权书\n- 音乐版权证明材料", "入驻指南"},
		},
		Keywords: []string{"入驻", "注册", "申请", "开通", "成为", "加入"},
		Hints:    []string{"入驻", "注册", "加入", "开通", "条件"},
	},
	{
		Name: "上传",
		Items: []faq{
			{"上传歌曲需要什么格式？", "音频格式要求：\n- 格式：WAV / FLAC / MP3（推荐 WAV 或 FLAC）\n- 采样率：≥ 44.1kHz\n- 位深：≥ 16bit\n- 码率：MP3 ≥ 320kbps\n\n封面要求：\n- 尺寸：≥ 3000×3000 px\n- 格式：JPG / PNG\n- 大小：≤ 10MB\n- 不含二维码、水印、联系方式", "上传规范"},
			{"歌词格式要求是什么？", "歌词格式要求：\n- 支持 LRC 和纯文本格式\n- LRC 需要时间标签精确到毫秒\n- 纯文本需要按段落分行\n- 不含其他平台的水印或标识\n- 包含翻译歌词时需标注语种", "上传规范"},
		},
		Keywords: []string{"上传", "格式", "音频", "封面", "歌词", "提交"},
		Hints:    []string{"上传", "格式", "文件", "提交", "发布"},
	},
	{
		Name: "审核",
		Items: []faq{
			{"审核一般需要多久？", "审核时效：\n- 常规审核：1-3 个工作日\n- 节假日期间可能延长至 5 个工作日\n- 紧急发行可申请加急审核（需提前报备）\n\n常见驳回原因：\n1. 封面不合规（含二维码/水印/侵权图片）\n2. 音频质量不达标（底噪过大/削波失真）\n3. 元数据不完整（缺少作者/作曲/编曲信息）\n4. 疑似侵权（曲调/歌词与已有作品高度相似）", "审核规则"},
		},
		Keywords: []string{"审核", "驳回", "通过", "多久", "时间"},
		Hints:    []string{"审核", "驳回", "等", "多久"},
	},
	{
		Name: "结算",
		Items: []faq{
			{"结算规则是怎样的？", "结算周期与规则：\n- 结算周期：月度结算，次月 15 日生成账单\n- 提现门槛：满 100 元可提现\n- 到账时间：提现后 3-5 个工作日\n- 分成比例：根据合约类型不同，一般为 50%-70%\n\n结算收入来源：\n1. 播放分成（按有效播放量）\n2. 会员专享分成（VIP 用户播放加权）\n3. 数字专辑/单曲销售分成\n4. 彩铃/BGM 授权收益", "结算说明"},
			{"为什么我的收入变少了？", "收入变化常见原因：\n1. **结算歌曲数变化**：部分歌曲授权到期或下架\n2. **播放量波动**：自然衰减或推荐位调整\n3. **平台单价调整**：季度性 CPM 浮动\n4. **新歌结算延迟**：当月发布的歌通常下月才开始结算\n5. **扣税/手续费**：个税代扣比例变化\n\n如有异常，可通过 AI 助手使用「结算变化分析」功能查看详细归因。", "结算 FAQ"},
		},
		Keywords: []string{"结算", "收入", "提现", "分成", "账单", "钱", "收益"},
		Hints:    []string{"结算", "钱", "收入", "提现"},
	},
	{
		Name: "版权",
		Items: []faq{
			{"如何保护我的歌曲版权？", "版权保护建议：\n1. **创作留痕**：保存创作过程记录（demo、手稿、时间戳）\n2. **版权登记**：通过中国版权保护中心或省级版权局登记\n3. **平台维权**：发现侵权可在平台「维权中心」提交投诉\n4. **证据保全**：使用可信时间戳或区块链存证\n\n平台侧保护措施：\n- 音频指纹检测（上传时自动比对）\n- 侵权举报通道（7×24 小时受理）\n- 维权结果跟踪（处理时效 ≤ 15 个工作日）", "版权保护指南"},
		},
		Keywords: []string{"版权", "侵权", "维权", "保护", "抄袭"},
		Hints:    []string{"版权", "侵权", "维权"},
	},
	{
		Name: "活动",
		Items: []faq{
			{"最近有什么音乐人活动？", "当前进行中的活动：\n\n🎵 **春日创作大赛**\n- 时间：2026-02-15 ~ 2026-03-31\n- 主题：以「春天」为灵感创作原创歌曲\n- 奖励：一等奖 ¥10,000 + 首页推荐位 7 天\n\n🎤 **新人扶持计划 S3**\n- 时间：常年有效\n- 对象：入驻 ≤ 6 个月的新音乐人\n- 权益：免费推荐位 + 1v1 运营指导\n\n📢 **短视频宣推补贴**\n- 时间：2026-02-01 ~ 2026-04-30\n- 内容：使用平台歌曲制作短视频，播放量 ≥ 10,000 可获补贴", "活动中心"},
		},
		Keywords: []string{"活动", "比赛", "扶持", "补贴", "奖励"},
		Hints:    []string{"活动", "比赛", "奖"},
	},
}

func faqCategoryNames() []string {
	names := make([]string, 0, len(faqCategories)+1)
	for _, c := range faqCategories {
		names = append(names, c.Name)
	}
	return append(names, "all")
}

func searchKnowledgeDescriptor() capability.Descriptor {
	return capability.Descriptor{
		Name:        SearchKnowledge,
		Description: "在知识库中搜索音乐人相关规则和指南。涵盖入驻、上传、审核、结算、版权、活动等常见问题。",
		Parameters: capability.ObjectSchema([]capability.NamedProperty{
			capability.Param("query", "string", "用户的问题", capability.Required()),
			capability.Param("category", "string", "分类筛选", capability.Enum(faqCategoryNames()...), capability.Default("all")),
		}),
		Handler: capability.HandlerFunc(searchKnowledge),
	}
}

func searchKnowledge(ctx context.Context, args map[string]any) (any, error) {
	query, err := capability.RequireString(args, "query")
	if err != nil {
		return nil, err
	}
	category := capability.String(args, "category", "all")
	lower := strings.ToLower(query)

	scope := faqCategories
	for _, c := range faqCategories {
		if c.Name == category {
			scope = []faqCategory{c}
			break
		}
	}

	keywords := queryKeywords(lower)
	var results []any
	for _, c := range scope {
		for _, item := range c.Items {
			if matchesAny(strings.ToLower(item.Question)+strings.ToLower(item.Answer), keywords) {
				results = append(results, faqResult(c.Name, item, "high"))
			}
		}
	}

	if len(results) == 0 {
		best := guessCategory(lower)
		for i, item := range best.Items {
			if i == 2 {
				break
			}
			results = append(results, faqResult(best.Name, item, "medium"))
		}
	}

	total := len(results)
	if len(results) > 3 {
		results = results[:3]
	}
	return map[string]any{
		"query":       query,
		"results":     results,
		"total_found": total,
		"note":        "以上信息来自平台规则文档，如需人工客服请点击「联系客服」",
	}, nil
}

func faqResult(category string, item faq, relevance string) map[string]any {
	return map[string]any{
		"category":  category,
		"question":  item.Question,
		"answer":    item.Answer,
		"source":    item.Source,
		"relevance": relevance,
	}
}

func queryKeywords(text string) []string {
	var keywords []string
	for _, c := range faqCategories {
		for _, kw := range c.Keywords {
			if strings.Contains(text, kw) {
				keywords = append(keywords, kw)
			}
		}
	}
	if len(keywords) == 0 {
		// 回退为问题前四个字
		runes := []rune(text)
		if len(runes) > 4 {
			runes = runes[:4]
		}
		keywords = []string{string(runes)}
	}
	return keywords
}

func matchesAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if kw != "" && strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

func guessCategory(text string) faqCategory {
	for _, c := range faqCategories {
		for _, h := range c.Hints {
			if strings.Contains(text, h) {
				return c
			}
		}
	}
	return faqCategories[0]
}

func uploadComplianceDescriptor() capability.Descriptor {
	return capability.Descriptor{
		Name:        CheckUploadCompliance,
		Description: "上传前预检，检查音频和元数据是否符合平台要求。",
		Parameters: capability.ObjectSchema([]capability.NamedProperty{
			capability.Param("audio_format", "string", "音频格式，如 wav/flac/mp3", capability.Default("mp3")),
			capability.Param("sample_rate", "integer", "采样率 (Hz)", capability.Default(44100)),
			capability.Param("cover_size", "string", "封面尺寸，如 3000x3000", capability.Default("3000x3000")),
			capability.Param("has_lyrics", "boolean", "是否包含歌词", capability.Default(true)),
			capability.Param("has_composer_info", "boolean", "是否包含作曲/作词信息", capability.Default(true)),
		}),
		Handler: capability.HandlerFunc(checkUploadCompliance),
	}
}

func checkUploadCompliance(ctx context.Context, args map[string]any) (any, error) {
	format := capability.String(args, "audio_format", "mp3")
	sampleRate := capability.Int(args, "sample_rate", 44100)
	coverSize := capability.String(args, "cover_size", "3000x3000")

	issues := []string{}
	warnings := []string{}
	passed := []string{}

	switch strings.ToLower(format) {
	case "wav", "flac":
		passed = append(passed, fmt.Sprintf("✅ 音频格式 %s：符合要求（推荐格式）", strings.ToUpper(format)))
	case "mp3":
		warnings = append(warnings, "⚠️ 音频格式 MP3：可接受，但建议使用 WAV 或 FLAC 以获得更好音质")
	default:
		issues = append(issues, fmt.Sprintf("❌ 音频格式 %s：不支持，请转换为 WAV / FLAC / MP3", format))
	}

	if sampleRate >= 44100 {
		passed = append(passed, fmt.Sprintf("✅ 采样率 %dHz：符合要求", sampleRate))
	} else {
		issues = append(issues, fmt.Sprintf("❌ 采样率 %dHz：不足，要求 ≥ 44100Hz", sampleRate))
	}

	if w, h, ok := parseCoverSize(coverSize); !ok {
		warnings = append(warnings, "⚠️ 封面尺寸格式无法解析，请确认 ≥ 3000×3000 px")
	} else if w >= 3000 && h >= 3000 {
		passed = append(passed, fmt.Sprintf("✅ 封面尺寸 %s：符合要求", coverSize))
	} else {
		issues = append(issues, fmt.Sprintf("❌ 封面尺寸 %s：过小，要求 ≥ 3000×3000 px", coverSize))
	}

	if capability.Bool(args, "has_lyrics", true) {
		passed = append(passed, "✅ 歌词：已提供")
	} else {
		warnings = append(warnings, "⚠️ 缺少歌词：非必填但强烈建议提供（影响搜索和推荐）")
	}

	if capability.Bool(args, "has_composer_info", true) {
		passed = append(passed, "✅ 作曲/作词信息：已提供")
	} else {
		issues = append(issues, "❌ 缺少作曲/作词信息：必填项，否则将被驳回")
	}

	canUpload := len(issues) == 0
	summary, tip := "✅ 可以上传", "所有必需项均已通过，可以开始上传"
	if !canUpload {
		summary = fmt.Sprintf("❌ 存在 %d 个问题需要修复", len(issues))
		tip = "修复所有 ❌ 项后即可上传"
	}
	return map[string]any{
		"can_upload": canUpload,
		"summary":    summary,
		"issues":     issues,
		"warnings":   warnings,
		"passed":     passed,
		"tip":        tip,
	}, nil
}

func parseCoverSize(s string) (int, int, bool) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(s)), "x")
	if len(parts) != 2 {
		return 0, 0, false
	}
	w, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, false
	}
	h, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, false
	}
	return w, h, true
}
