// Package status summarizes a cluster's recorded state for operators.
//
// Report is pure and works from the state document alone. Audit additionally
// compares each recorded node against EC2 and is read-only.
package status
