// Command kontra validates tabular datasets against a declarative YAML
// contract, cascading through a metadata preplan, SQL pushdown, and an
// in-memory columnar fallback.
package main

func main() {
	Execute()
}
