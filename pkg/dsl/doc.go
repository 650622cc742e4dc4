// Package dsl is the entry point to the compliance rule language.
//
// A rule source file declares one policy:
//
//	policy SEC_PR_002 {
//	  version: "1.0.0"
//	  name: "Secrets"
//	  rules {
//	    when secrets.detected == true and secrets.high_severity_count > 0 {
//	      enforce BLOCK
//	      message "Credentials in diff"
//	    }
//	    require approvals.security.count >= 1
//	  }
//	  compliance { SOC2: "CC6.1" }
//	}
//
// CompileSource runs the whole pipeline (lexer, parser, validator,
// compiler) and returns one compiled rule per declared rule.
// The subpackages can be used individually:
//
//   - lexer: source text to tokens
//   - parser: tokens to ast.Policy
//   - validator: collect-all semantic checks
//   - compiler: AST to compiled artifacts
package dsl
