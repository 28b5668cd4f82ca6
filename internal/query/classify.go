package query

import (
	"strings"
	"unicode"

	"workbench/internal/domain"
)

// Classify returns the statement kind from the leading keyword of sql.
// Leading whitespace and case are ignored; nothing past the first word is read.
func Classify(sql string) domain.StatementKind {
	word := leadingWord(sql)
	switch strings.ToUpper(word) {
	case "SELECT":
		return domain.StatementSelect
	case "INSERT":
		return domain.StatementInsert
	case "UPDATE":
		return domain.StatementUpdate
	case "DELETE":
		return domain.StatementDelete
	case "CREATE":
		return domain.StatementCreate
	case "DROP":
		return domain.StatementDrop
	case "SHOW":
		return domain.StatementShow
	default:
		return domain.StatementOther
	}
}

func leadingWord(sql string) string {
	s := strings.TrimSpace(sql)
	if end := strings.IndexFunc(s, func(r rune) bool { return !unicode.IsLetter(r) }); end >= 0 {
		s = s[:end]
	}
	return s
}

// ddlObjects are the object nouns recognized after CREATE or DROP.
var ddlObjects = map[string]string{
	"TABLE":     "Table",
	"VIEW":      "View",
	"INDEX":     "Index",
	"DATABASE":  "Database",
	"SCHEMA":    "Schema",
	"PROCEDURE": "Procedure",
	"FUNCTION":  "Function",
	"TRIGGER":   "Trigger",
	"SEQUENCE":  "Sequence",
}

// ddlObject names the object a CREATE or DROP statement acts on, e.g. "Table" for
// "CREATE TEMPORARY TABLE t". Unknown objects are reported as "Table".
func ddlObject(sql string) string {
	fields := strings.Fields(sql)
	for i := 1; i < len(fields) && i <= 4; i++ {
		if noun, ok := ddlObjects[strings.ToUpper(fields[i])]; ok {
			return noun
		}
	}
	return "Table"
}
