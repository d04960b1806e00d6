package catalog

import "strings"

// irregularPast covers the irregular verbs that plausibly follow hedging
// fillers in translated prose. Everything else takes the orthographic
// rules in PastTense.
var irregularPast = map[string]string{
	"be": "was", "become": "became", "begin": "began", "bite": "bit",
	"blow": "blew", "break": "broke", "bring": "brought", "build": "built",
	"burst": "burst", "buy": "bought", "catch": "caught", "choose": "chose",
	"cling": "clung", "come": "came", "deal": "dealt", "draw": "drew",
	"drink": "drank", "drive": "drove", "eat": "ate", "fall": "fell",
	"feed": "fed", "feel": "felt", "fight": "fought", "find": "found",
	"flee": "fled", "fly": "flew", "forget": "forgot", "freeze": "froze",
	"get": "got", "give": "gave", "go": "went", "grow": "grew",
	"hang": "hung", "hear": "heard", "hide": "hid", "hit": "hit",
	"hold": "held", "keep": "kept", "know": "knew", "laugh": "laughed",
	"leave": "left", "let": "let", "lose": "lost", "make": "made",
	"mean": "meant", "meet": "met", "pay": "paid", "put": "put",
	"read": "read", "rise": "rose", "run": "ran", "say": "said",
	"see": "saw", "seek": "sought", "sell": "sold", "send": "sent",
	"shake": "shook", "shed": "shed", "shine": "shone", "shoot": "shot",
	"shrink": "shrank", "sing": "sang", "sink": "sank", "sit": "sat",
	"sleep": "slept", "slide": "slid", "speak": "spoke", "spin": "spun",
	"spring": "sprang", "stand": "stood", "steal": "stole", "stick": "stuck",
	"sting": "stung", "strike": "struck", "swear": "swore", "sweep": "swept",
	"swim": "swam", "swing": "swung", "take": "took", "teach": "taught",
	"tear": "tore", "tell": "told", "think": "thought", "throw": "threw",
	"understand": "understood", "wear": "wore", "weep": "wept", "win": "won",
	"write": "wrote",
}

// PastTense returns the simple past form of an English verb. Irregulars
// come from the table; regular verbs follow the usual spelling rules
// (smile→smiled, carry→carried, stop→stopped).
func PastTense(verb string) string {
	lower := strings.ToLower(verb)
	if past, ok := irregularPast[lower]; ok {
		return matchLeadingCase(verb, past)
	}
	var past string
	switch {
	case lower == "":
		return verb
	case strings.HasSuffix(lower, "e"):
		past = lower + "d"
	case strings.HasSuffix(lower, "y") && len(lower) > 1 && !isVowel(lower[len(lower)-2]):
		past = lower[:len(lower)-1] + "ied"
	case shouldDoubleFinal(lower):
		past = lower + string(lower[len(lower)-1]) + "ed"
	default:
		past = lower + "ed"
	}
	return matchLeadingCase(verb, past)
}

// shouldDoubleFinal reports whether a short verb ends consonant-vowel-
// consonant and doubles its final letter (stop→stopped, grin→grinned).
// Longer verbs keep a single consonant; final w, x, and y never double.
func shouldDoubleFinal(verb string) bool {
	if len(verb) < 3 || len(verb) > 4 {
		return false
	}
	last := verb[len(verb)-1]
	if last == 'w' || last == 'x' || last == 'y' {
		return false
	}
	return !isVowel(last) && isVowel(verb[len(verb)-2]) && !isVowel(verb[len(verb)-3])
}

func isVowel(b byte) bool {
	switch b {
	case 'a', 'e', 'i', 'o', 'u':
		return true
	}
	return false
}
