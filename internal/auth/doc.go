// Package auth models the marketplace account as seen by the client and
// derives its access tier.
//
// The backend signals the role through three inconsistent fields (a numeric
// or string roleId, a role string and a roleName string) plus a hard-coded
// administrator email. Classifier folds all of them into one Role; the
// static permission table then describes what each Role may do in the view
// layer. Route-level enforcement lives in package gate.
package auth
