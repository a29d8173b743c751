package workflow

import "strings"

// listAt 读取 m[key] 中的列表，兼容直接返回的切片与 JSON 解码得到的 []any。
func listAt(m map[string]any, key string) []any {
	switch v := m[key].(type) {
	case []any:
		return v
	case []map[string]any:
		out := make([]any, len(v))
		for i := range v {
			out[i] = v[i]
		}
		return out
	case []string:
		out := make([]any, len(v))
		for i := range v {
			out[i] = v[i]
		}
		return out
	}
	return nil
}

func mapAt(m map[string]any, key string) (map[string]any, bool) {
	v, ok := m[key].(map[string]any)
	return v, ok
}

func stringAt(m map[string]any, key string) (string, bool) {
	s, ok := m[key].(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", false
	}
	return s, true
}

// firstMap 返回 m[key] 列表中的第一个对象。
func firstMap(m map[string]any, key string) (map[string]any, bool) {
	list := listAt(m, key)
	if len(list) == 0 {
		return nil, false
	}
	first, ok := list[0].(map[string]any)
	return first, ok
}

// topTopicTitle 取热点列表中排名第一的话题标题。
func topTopicTitle(trends map[string]any) (any, bool) {
	topic, ok := firstMap(trends, "topics")
	if !ok {
		return nil, false
	}
	title, ok := stringAt(topic, "title")
	return title, ok
}

// firstSongName 取灵感结果中的第一个歌名，去掉书名号。
func firstSongName(inspiration map[string]any) (any, bool) {
	names := listAt(inspiration, "song_names")
	if len(names) == 0 {
		return nil, false
	}
	name, ok := names[0].(string)
	if !ok {
		return nil, false
	}
	name = strings.Trim(name, "《》 ")
	if name == "" {
		return nil, false
	}
	return name, true
}

// topRecommendedSong 取推歌结果中排名第一的歌曲名称。
func topRecommendedSong(recs map[string]any) (any, bool) {
	rec, ok := firstMap(recs, "recommendations")
	if !ok {
		return nil, false
	}
	song, ok := mapAt(rec, "song")
	if !ok {
		return nil, false
	}
	name, ok := stringAt(song, "name")
	return name, ok
}
