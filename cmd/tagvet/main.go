// Tagvet - read-only tag compliance auditor.
// Scan. Evaluate. Report. Nothing is ever modified.
package main

func main() {
	Execute()
}
