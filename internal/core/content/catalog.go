package content

import (
	"fmt"
	"strings"
)

// Field 可生成欄位（封閉列舉）
type Field string

const (
	FieldYoutubeTitle              Field = "youtubeTitle"
	FieldYoutubeDescription        Field = "youtubeDescription"
	FieldYoutubeTags               Field = "youtubeTags"
	FieldSocialMediaPosts          Field = "socialMediaPosts"
	FieldIngredients               Field = "ingredients"
	FieldInstructions              Field = "instructions"
	FieldThumbnailDescription      Field = "thumbnailDescription"
	FieldOptimalPublishingSchedule Field = "optimalPublishingSchedule"
	FieldPromotionTips             Field = "promotionTips"
)

// Kind 欄位的結構種類
type Kind int

const (
	KindString Kind = iota
	KindStringList
	KindPostList
	KindIngredientList
)

// FieldSpec 欄位的提示詞片段與結構
type FieldSpec struct {
	Field  Field
	Kind   Kind
	prompt map[Mode]string
}

// Prompt 取得指定模式下的提示詞片段
func (s FieldSpec) Prompt(mode Mode, recipeName string) string {
	p, ok := s.prompt[mode]
	if !ok {
		p = s.prompt[ModeStandard]
	}
	return strings.ReplaceAll(p, "{recipe}", recipeName)
}

// catalog 依固定順序排列，提示詞編號依此順序
var catalog = []FieldSpec{
	{
		Field: FieldYoutubeTitle,
		Kind:  KindStringList,
		prompt: map[Mode]string{
			ModeStandard: "**Названия для YouTube-видео:** Создай 3-5 привлекательных, кликабельных и максимально SEO-оптимизированных названий, включающих ключевые слова, популярные в поиске YouTube и Google. Они ДОЛЖНЫ содержать вопросительные слова (например, 'Как...', 'Почему...') или быть в формате списков ('Топ-5...', '7 лучших...'), чтобы повысить кликабельность.",
			ModeShort:    "**Названия для YouTube Shorts/Reels/TikTok:** Создай 2-3 очень коротких, цепляющих и вирусных названия для короткого видео по рецепту \"{recipe}\". Используй трендовые фразы, эмодзи и вопросительные слова.",
		},
	},
	{
		Field: FieldYoutubeDescription,
		Kind:  KindString,
		prompt: map[Mode]string{
			ModeStandard: "**Описание для YouTube-видео:** Напиши подробное, максимально релевантное и привлекательное описание с использованием популярных ключевых слов, релевантных хештегов (до 5-7 штук), и ЧЕТКИХ призывов к действию (подписка на канал, лайк видео, комментарий). Обязательно используй **Markdown для форматирования**, включая **заголовки (## или ###), списки (- или *), и выделение текста (жирный шрифт с **)**. Включи примеры тайм-кодов (например, 0:00 Вступление, 0:30 Ингредиенты, 1:00 Приготовление). Начни описание со вступительного предложения, например, \"В этом видео вы узнаете, как приготовить...\".",
			ModeShort:    "**Описание для YouTube Shorts/Reels/TikTok:** Напиши очень краткое, но информативное описание (2-3 предложения) с призывом к действию (например, 'Подпишись!', 'Попробуй приготовить!') и 3-5 трендовыми хештегами. Используй эмодзи и **жирный шрифт для ключевых фраз**.",
		},
	},
	{
		Field: FieldYoutubeTags,
		Kind:  KindStringList,
		prompt: map[Mode]string{
			ModeStandard: "**Теги для YouTube-видео:** Список из 10-15 релевантных хештегов для YouTube. Подбирай популярные тематические ключевики и хештеги, учитывая сезонность и текущие тренды, применимые к этому рецепту.",
			ModeShort:    "**Теги для YouTube Shorts/Reels/TikTok:** Список из 5-8 максимально релевантных и трендовых хештегов для алгоритмов коротких видео.",
		},
	},
	{
		Field: FieldSocialMediaPosts,
		Kind:  KindPostList,
		prompt: map[Mode]string{
			ModeStandard: "**Сопроводительные посты для соцсетей:** Сгенерируй следующие посты:\n" +
				"    - **Для ВКонтакте (Полная публикация):** Развернутый пост с подробным описанием рецепта, возможностью задать вопросы, эмодзи, призывами к действию и хештегами.\n" +
				"    - **Для Телеграм-канала (Пост):** Подробный и интересный пост с акцентом на рецепт, его уникальность и призывом к действию. Используй эмодзи и хештеги.",
			ModeShort: "**Сопроводительные посты для соцсетей (короткие форматы):** Сгенерируй следующие посты:\n" +
				"    - **Для Instagram Reels (Caption):** Короткое описание с призывом к действию, эмодзи и 3-5 трендовыми хештегами.\n" +
				"    - **Для TikTok (Caption):** Вирусный, краткий текст с вопросом или призывом к действию, популярными хештегами и эмодзи.\n" +
				"    - **Для ВКонтакте (Пост):** Краткий пост с акцентом на быстрое приготовление, с эмодзи и хештегами.\n" +
				"    - **Для Телеграм-канала (Пост):** Краткий пост с акцентом на уникальность рецепта или лайфхак и призывом посмотреть видео.",
		},
	},
	{
		Field: FieldIngredients,
		Kind:  KindIngredientList,
		prompt: map[Mode]string{
			ModeStandard: "**Список ингредиентов:** Подробный список с указанием количества и единиц измерения.",
			ModeShort:    "**Список ингредиентов (кратко):** Краткий список основных ингредиентов (5-7 позиций) с количеством, подходящий для быстрого отображения в коротком видео.",
		},
	},
	{
		Field: FieldInstructions,
		Kind:  KindStringList,
		prompt: map[Mode]string{
			ModeStandard: "**Пошаговая инструкция:** Четкие и понятные шаги приготовления.",
			ModeShort:    "**Пошаговая инструкция (очень кратко):** 3-5 очень коротких и четких шагов приготовления, подходящих для быстрого темпа короткого видео.",
		},
	},
	{
		Field: FieldThumbnailDescription,
		Kind:  KindString,
		prompt: map[Mode]string{
			ModeStandard: "**Описание для миниатюры YouTube:** Короткое описание идеи для привлекательной миниатюры.",
			ModeShort:    "**Описание для вертикальной миниатюры (9:16) YouTube Shorts/Reels/TikTok:** Короткое описание идеи для привлекательной вертикальной миниатюры.",
		},
	},
	{
		Field: FieldOptimalPublishingSchedule,
		Kind:  KindString,
		prompt: map[Mode]string{
			ModeStandard: "**Оптимальное время и дата публикации видео:** Предоставь общие рекомендации по оптимальному времени и дню недели для публикации кулинарного видео на YouTube/в соцсетях, чтобы максимизировать охват и вовлеченность.",
			ModeShort:    "**Оптимальное время и дата публикации короткого видео:** Предоставь рекомендации по лучшему времени для публикации коротких видео (Shorts, Reels, TikTok), учитывая максимальную активность аудитории.",
		},
	},
	{
		Field: FieldPromotionTips,
		Kind:  KindString,
		prompt: map[Mode]string{
			ModeStandard: "**Советы по продвижению и рекламе видео:** Предоставь рекомендации по улучшению CTR (кликабельности) и удержанию аудитории, а также упомяни, как могут быть полезны инструменты аналитики YouTube (например, TubeBuddy, VidIQ). Сфокусируйся на общих лучших практиках для кулинарного канала.",
			ModeShort:    "**Советы по продвижению короткого видео:** Предоставь конкретные советы по продвижению Shorts/Reels/TikTok, включая использование трендовой музыки, призывы к взаимодействию и дуэты/коллаборации.",
		},
	},
}

// AllFields 所有欄位，依目錄順序
func AllFields() []Field {
	out := make([]Field, len(catalog))
	for i, s := range catalog {
		out[i] = s.Field
	}
	return out
}

// Lookup 查詢欄位定義
func Lookup(f Field) (FieldSpec, bool) {
	for _, s := range catalog {
		if s.Field == f {
			return s, true
		}
	}
	return FieldSpec{}, false
}

// Specs 將欄位集合展開為定義清單；空集合代表全部欄位，未知欄位回傳錯誤
func Specs(fields []Field) ([]FieldSpec, error) {
	if len(fields) == 0 {
		return append([]FieldSpec(nil), catalog...), nil
	}
	want := make(map[Field]bool, len(fields))
	for _, f := range fields {
		if _, ok := Lookup(f); !ok {
			return nil, fmt.Errorf("unknown field %q", f)
		}
		want[f] = true
	}
	var out []FieldSpec
	for _, s := range catalog {
		if want[s.Field] {
			out = append(out, s)
		}
	}
	return out, nil
}

// BuildPrompt 組合完整的俄文提示詞
func BuildPrompt(recipeName string, mode Mode, specs []FieldSpec) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Сгенерируй следующий контент для рецепта \"%s\":\n\n", recipeName)
	for i, s := range specs {
		fmt.Fprintf(&b, "%d.  %s\n", i+1, s.Prompt(mode, recipeName))
	}
	return b.String()
}

// ThumbnailPrompt 遠端圖片生成使用的提示詞
func ThumbnailPrompt(description, recipeName string, ratio AspectRatio) string {
	return fmt.Sprintf("Создай яркое и аппетитное изображение для обложки YouTube-видео в формате %s для рецепта \"%s\". "+
		"Изображение должно соответствовать следующему описанию: \"%s\". "+
		"Название рецепта \"%s\" ДОЛЖНО быть четко, крупным шрифтом, БЕЗ ОШИБОК и ТОЛЬКО НА РУССКОМ ЯЗЫКЕ, русскими буквами написано на обложке. "+
		"Включи привлекательный визуал блюда.", ratio, recipeName, description, recipeName)
}

// JSONShape 以文字描述 JSON 結構，給不支援 responseSchema 的供應商使用
func JSONShape(specs []FieldSpec) string {
	var b strings.Builder
	b.WriteString("{")
	for i, s := range specs {
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, "%q:", string(s.Field))
		switch s.Kind {
		case KindString:
			b.WriteString(`"string"`)
		case KindStringList:
			b.WriteString(`["string"]`)
		case KindPostList:
			b.WriteString(`[{"platform":"string","type":"string","text":"string"}]`)
		case KindIngredientList:
			b.WriteString(`[{"name":"string","quantity":"string","unit":"string"}]`)
		}
	}
	b.WriteString("}")
	return b.String()
}
