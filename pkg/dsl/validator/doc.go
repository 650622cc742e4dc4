// Package validator performs semantic checks on parsed policies: semantic
// version format, enforcement actions and condition trees. All errors are
// accumulated and returned together.
package validator
