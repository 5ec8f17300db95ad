package language

import (
	"fmt"
	"strings"
)

// Code identifies one of the answer languages a session can be displayed in.
type Code string

const (
	English  Code = "en"
	Chinese  Code = "zh"
	Japanese Code = "ja"
	Korean   Code = "ko"
	French   Code = "fr"
	German   Code = "de"
	Spanish  Code = "es"
	Russian  Code = "ru"
)

// Supported lists every language in menu order.
var Supported = []Code{English, Chinese, Japanese, Korean, French, German, Spanish, Russian}

var names = map[Code]string{
	English:  "English",
	Chinese:  "Chinese",
	Japanese: "Japanese",
	Korean:   "Korean",
	French:   "French",
	German:   "German",
	Spanish:  "Spanish",
	Russian:  "Russian",
}

// Name is the English language name used in prompts and menus.
func (c Code) Name() string {
	if n, ok := names[c]; ok {
		return n
	}
	return string(c)
}

func (c Code) Valid() bool {
	_, ok := names[c]
	return ok
}

// Parse accepts a code ("ja") or an English name ("Japanese"), case-insensitive.
func Parse(s string) (Code, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	for _, c := range Supported {
		if v == string(c) || v == strings.ToLower(names[c]) {
			return c, nil
		}
	}
	return "", fmt.Errorf("unsupported language %q", s)
}
