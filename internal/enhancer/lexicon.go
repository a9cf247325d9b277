package enhancer

// wordSet builds a membership set from a word list.
func wordSet(words ...string) map[string]bool {
	s := make(map[string]bool, len(words))
	for _, w := range words {
		s[w] = true
	}
	return s
}

// commonWords backs language detection: frequent function words that are
// strong signals for one language. Add a list here to support another
// language in auto-detection.
var commonWords = map[string]map[string]bool{
	"en": wordSet(
		"the", "and", "for", "are", "but", "not", "you", "all", "can", "her",
		"was", "one", "our", "out", "day", "get", "has", "him", "his", "how",
		"with", "this", "that", "they", "have", "from", "what", "when", "where",
		"will", "would", "there", "their", "about", "which", "into", "your",
		"some", "them", "then", "than", "does", "just", "also", "because",
	),
	"es": wordSet(
		"el", "la", "los", "las", "de", "del", "que", "en", "un", "una",
		"por", "con", "para", "es", "son", "como", "pero", "sus", "le", "ya",
		"este", "esta", "entre", "cuando", "muy", "sin", "sobre", "tambien",
		"hay", "donde", "quien", "desde", "todo", "nos", "durante", "estados",
		"porque", "tiene", "hasta", "puede", "ser", "fue", "hacer",
	),
}

// stopwords dropped before stemming and expansion.
var stopwords = map[string]map[string]bool{
	"en": wordSet(
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "when",
		"at", "by", "for", "with", "about", "against", "between", "into",
		"through", "during", "before", "after", "above", "below", "to", "from",
		"up", "down", "in", "out", "on", "off", "over", "under", "again",
		"further", "once", "here", "there", "where", "why", "how", "all",
		"any", "both", "each", "few", "more", "most", "other", "some", "such",
		"no", "nor", "not", "only", "own", "same", "so", "than", "too", "very",
		"can", "will", "just", "should", "now", "is", "are", "was", "were",
		"be", "been", "being", "do", "does", "did", "doing", "have", "has",
		"had", "having", "i", "me", "my", "we", "our", "you", "your", "he",
		"him", "his", "she", "her", "it", "its", "they", "them", "their",
		"what", "which", "who", "this", "that", "these", "those", "of", "as",
	),
	"es": wordSet(
		"el", "la", "los", "las", "un", "una", "unos", "unas", "de", "del",
		"al", "a", "ante", "bajo", "con", "contra", "desde", "en", "entre",
		"hacia", "hasta", "para", "por", "segun", "sin", "sobre", "tras",
		"y", "o", "u", "e", "ni", "que", "como", "cuando", "donde", "quien",
		"cual", "cuyo", "si", "no", "mas", "pero", "sino", "aunque", "porque",
		"pues", "es", "son", "era", "eran", "fue", "fueron", "ser", "estar",
		"esta", "estan", "estaba", "hay", "ha", "han", "he", "hemos",
		"yo", "tu", "usted", "nosotros", "ellos", "ellas", "me", "te", "se",
		"nos", "le", "les", "lo", "mi", "mis", "su", "sus", "este", "esta",
		"estos", "estas", "ese", "esa", "esos", "esas", "muy", "ya", "tambien",
	),
}

// thesaurus is the embedded lexical resource for POS-scoped synonym
// expansion, keyed language -> POS -> token. Deliberately compact: expansion
// targets the vocabulary that matters for technical documentation retrieval
// (setup, troubleshooting, configuration), not general English.
var thesaurus = map[string]map[string]map[string][]string{
	"en": {
		POSNoun: {
			"install":       {"setup", "installation"},
			"installation":  {"install", "setup"},
			"setup":         {"installation", "configuration"},
			"configuration": {"config", "settings", "setup"},
			"config":        {"configuration", "settings"},
			"error":         {"failure", "fault", "problem"},
			"problem":       {"issue", "error", "trouble"},
			"issue":         {"problem", "bug"},
			"bug":           {"defect", "issue"},
			"guide":         {"manual", "tutorial", "handbook"},
			"tutorial":      {"guide", "walkthrough"},
			"document":      {"file", "doc"},
			"file":          {"document"},
			"folder":        {"directory"},
			"directory":     {"folder"},
			"user":          {"account", "member"},
			"password":      {"credential", "passphrase"},
			"server":        {"host", "machine"},
			"application":   {"app", "program", "software"},
			"program":       {"application", "software"},
			"software":      {"application", "program"},
			"update":        {"upgrade", "patch"},
			"upgrade":       {"update"},
			"version":       {"release", "revision"},
			"command":       {"instruction"},
			"function":      {"method", "routine"},
			"method":        {"function", "procedure"},
			"example":       {"sample", "illustration"},
			"step":          {"stage", "phase"},
			"question":      {"query", "inquiry"},
			"answer":        {"response", "reply"},
			"search":        {"query", "lookup"},
			"query":         {"search", "question"},
			"index":         {"catalog"},
			"speed":         {"performance", "velocity"},
			"performance":   {"speed", "throughput"},
			"network":       {"connection"},
			"connection":    {"link", "network"},
			"database":      {"db", "datastore"},
			"api":           {"interface", "endpoint"},
		},
		POSVerb: {
			"installing":   {"configuring", "deploying"},
			"configured":   {"installed", "adjusted"},
			"running":      {"executing", "launching"},
			"building":     {"compiling", "creating"},
			"testing":      {"verifying", "checking"},
			"fixing":       {"repairing", "resolving"},
			"creating":     {"making", "generating"},
			"removing":     {"deleting", "uninstalling"},
			"starting":     {"launching", "initiating"},
			"stopping":     {"halting", "terminating"},
			"downloading":  {"fetching", "retrieving"},
			"uploading":    {"sending", "transferring"},
			"optimize":     {"improve", "tune"},
			"customize":    {"modify", "adapt"},
		},
		POSAdjective: {
			"optional":   {"elective"},
			"available":  {"accessible", "usable"},
			"invalid":    {"incorrect", "malformed"},
			"basic":      {"fundamental", "elementary"},
			"additional": {"extra", "supplementary"},
			"automatic":  {"automated"},
			"manual":     {"handbook"},
			"critical":   {"crucial", "essential"},
			"slow":       {"sluggish"},
			"fast":       {"quick", "rapid"},
		},
	},
	"es": {
		POSNoun: {
			"instalacion":   {"configuracion", "montaje"},
			"configuracion": {"ajustes", "instalacion"},
			"error":         {"fallo", "problema"},
			"problema":      {"error", "inconveniente"},
			"archivo":       {"documento", "fichero"},
			"documento":     {"archivo"},
			"carpeta":       {"directorio"},
			"usuario":       {"cuenta"},
			"aplicacion":    {"programa", "software"},
			"programa":      {"aplicacion"},
			"actualizacion": {"mejora"},
			"version":       {"edicion"},
			"guia":          {"manual", "tutorial"},
			"pregunta":      {"consulta"},
			"respuesta":     {"contestacion"},
			"busqueda":      {"consulta"},
			"paso":          {"etapa", "fase"},
			"ejemplo":       {"muestra"},
		},
		POSVerb: {
			"instalar":   {"configurar", "montar"},
			"configurar": {"ajustar", "instalar"},
			"ejecutar":   {"correr", "lanzar"},
			"crear":      {"generar", "producir"},
			"eliminar":   {"borrar", "quitar"},
			"descargar":  {"bajar", "obtener"},
			"buscar":     {"consultar", "localizar"},
		},
		POSAdjective: {
			"disponible": {"accesible"},
			"opcional":   {"electivo"},
			"basico":     {"fundamental", "elemental"},
			"rapido":     {"veloz"},
			"lento":      {"pausado"},
		},
	},
}
