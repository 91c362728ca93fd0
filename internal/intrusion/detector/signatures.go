package detector

import (
	"regexp"

	"bulwark/internal/intrusion/models"
)

// Signature is one compiled attack pattern.
type Signature struct {
	Name     string
	Category models.Category
	Pattern  *regexp.Regexp
}

func sig(name string, c models.Category, expr string) Signature {
	return Signature{Name: name, Category: c, Pattern: regexp.MustCompile(expr)}
}

// DefaultSignatures are always active. Rules files add to them.
func DefaultSignatures() []Signature {
	return []Signature{
		sig("sqli_union_select", models.CategorySQLInjection, `(?i)\bunion\b[\s(]+(all\s+)?select\s*(\*|\(|@@|null\b|\d|[\w.'"]+\s*(,|\bfrom\b))`),
		sig("sqli_tautology", models.CategorySQLInjection, `(?i)['"]\s*(or|and)\s+['"]?\w+['"]?\s*=\s*['"]?\w+`),
		sig("sqli_numeric_tautology", models.CategorySQLInjection, `(?i)\b(or|and)\s+\d+\s*=\s*\d+\s*(--|#|/\*|;|\)|$)`),
		sig("sqli_stacked_query", models.CategorySQLInjection, `(?i);\s*(drop|truncate|alter|create|delete|insert|update|exec)\s+\w+`),
		sig("sqli_comment_terminator", models.CategorySQLInjection, `(?i)['"]\s*(--|#|/\*)\s*(\*/|$|(select|union|or|and|drop|insert|update|delete|exec)\b)`),
		sig("sqli_time_based", models.CategorySQLInjection, `(?i)\b(sleep|benchmark|pg_sleep)\s*\(\s*\d|\bwaitfor\s+delay\s+'`),
		sig("sqli_schema_probe", models.CategorySQLInjection, `(?i)\b(information_schema|xp_cmdshell|sysobjects)\b`),

		sig("xss_script_tag", models.CategoryXSS, `(?i)<\s*/?\s*script\b`),
		sig("xss_js_uri", models.CategoryXSS, `(?i)\b(javascript|vbscript)\s*:`),
		sig("xss_event_handler", models.CategoryXSS, `(?i)<[^>]*\bon[a-z]+\s*=`),
		sig("xss_active_element", models.CategoryXSS, `(?i)<\s*(iframe|object|embed|svg|math|base)\b`),
		sig("xss_dom_sink", models.CategoryXSS, `(?i)\b(document\.cookie|document\.write|window\.location)\b|\beval\s*\(`),

		sig("traversal_dotdot", models.CategoryPathTraversal, `(\.\.[/\\])|([/\\]\.\.$)`),
		sig("traversal_encoded", models.CategoryPathTraversal, `(?i)(%2e%2e|\.%2e|%2e\.)(%2f|%5c|/|\\)`),
		sig("traversal_sensitive_file", models.CategoryPathTraversal, `(?i)(/etc/(passwd|shadow|hosts)|c:\\windows\\|\bboot\.ini\b|/proc/self/)`),

		// The command must end the value or take a flag, path, host or redirect;
		// "; cat food" in prose does not.
		sig("cmd_chained", models.CategoryCommandInjection, `(?i)(;|&&|\|\|?)\s*(cat|ls|id|whoami|uname|wget|curl|nc|ncat|bash|sh|ping|rm|chmod|python|perl)\b(\s*$|\s*[;&|<>`+"`"+`]|\s+[-/~$'"]|\s+\w+://|\s+[\w-]*(/|\.\w))`),
		sig("cmd_substitution", models.CategoryCommandInjection, `(?i)\$\(\s*(cat|ls|id|whoami|uname|wget|curl|nc|bash|sh|ping|rm)\b[^)]*\)`),
		sig("cmd_backticks", models.CategoryCommandInjection, "(?i)`\\s*(cat|ls|id|whoami|uname|wget|curl|nc|bash|sh|ping|rm)\\b[^`]*`"),
	}
}

// attackTools are User-Agent product names of common offensive tooling.
var attackTools = []string{
	"sqlmap", "nikto", "nmap", "masscan", "zgrab", "nuclei", "dirbuster",
	"gobuster", "wpscan", "acunetix", "nessus", "openvas", "w3af", "havij",
	"hydra", "fimap", "arachni", "skipfish", "zmeu", "commix",
}
