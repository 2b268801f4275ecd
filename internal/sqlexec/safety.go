package sqlexec

import (
	"fmt"
	"strings"
	"sync"

	"vitess.io/vitess/go/vt/sqlparser"
)

// deniedFunctions is a closed deny-list of side-effectful or
// information-disclosing SQL functions (spec.md §4.6 Safety for
// CustomSqlCheck), checked case-insensitively against every FuncExpr in the
// parsed statement.
var deniedFunctions = map[string]bool{
	"pg_sleep": true, "pg_read_file": true, "pg_ls_dir": true,
	"lo_import": true, "lo_export": true, "dblink": true, "dblink_exec": true,
	"xp_cmdshell": true, "openrowset": true, "opendatasource": true,
	"sleep": true, "benchmark": true, "load_file": true,
}

var (
	parserOnce      sync.Once
	globalParser    *sqlparser.Parser
	globalParserErr error
)

func getParser() (*sqlparser.Parser, error) {
	parserOnce.Do(func() {
		globalParser, globalParserErr = sqlparser.New(sqlparser.Options{})
	})
	return globalParser, globalParserErr
}

// ValidateCustomSQL enforces spec.md §4.6's CustomSqlCheck safety rules:
// only a single SELECT (optionally a CTE whose body is a SELECT) is
// allowed; INSERT/UPDATE/DELETE/DDL and multi-statement input are rejected,
// as is any call to a denied function.
func ValidateCustomSQL(sql string) error {
	trimmed := strings.TrimSpace(strings.TrimRight(strings.TrimSpace(sql), ";"))
	if strings.Contains(trimmed, ";") {
		return fmt.Errorf("sqlexec: custom_sql_check must be a single statement")
	}

	p, err := getParser()
	if err != nil {
		return fmt.Errorf("sqlexec: init sql parser: %w", err)
	}
	stmt, err := p.Parse(trimmed)
	if err != nil {
		return fmt.Errorf("sqlexec: custom_sql_check failed to parse: %w", err)
	}

	sel, err := unwrapToSelect(stmt)
	if err != nil {
		return err
	}

	var funcErr error
	sqlparser.Walk(func(node sqlparser.SQLNode) (bool, error) {
		if fn, ok := node.(*sqlparser.FuncExpr); ok {
			name := strings.ToLower(fn.Name.String())
			if deniedFunctions[name] {
				funcErr = fmt.Errorf("sqlexec: custom_sql_check calls denied function %q", name)
				return false, nil
			}
		}
		return true, nil
	}, sel)
	if funcErr != nil {
		return funcErr
	}
	return nil
}

// unwrapToSelect accepts a bare SELECT or a CTE whose final body is a
// SELECT, rejecting everything else (INSERT/UPDATE/DELETE/DDL, unions of
// non-select statements, etc.) per spec.md §4.6.
func unwrapToSelect(stmt sqlparser.Statement) (*sqlparser.Select, error) {
	switch s := stmt.(type) {
	case *sqlparser.Select:
		return s, nil
	case *sqlparser.Union:
		return nil, fmt.Errorf("sqlexec: custom_sql_check does not support UNION")
	default:
		return nil, fmt.Errorf("sqlexec: custom_sql_check must be a single SELECT or CTE-with-SELECT, got %T", stmt)
	}
}

// ToCountQuery wraps a validated custom-SQL expression to obtain the
// violation count (spec.md §4.6: "transform the query to SELECT COUNT(*)
// FROM (<user-sql>) AS _v").
func ToCountQuery(userSQL string) string {
	trimmed := strings.TrimSpace(strings.TrimRight(strings.TrimSpace(userSQL), ";"))
	return fmt.Sprintf("SELECT COUNT(*) FROM (%s) AS _v", trimmed)
}
