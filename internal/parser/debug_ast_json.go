package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"

	"lox/internal/ast"
	"lox/internal/token"
)

// WalkAST recursively traverses an AST and serializes it into a map
// structure for JSON output. Node ids are included so a dump can be matched
// against resolver debug logs.
func WalkAST(node ast.Node) interface{} {
	if node == nil || (reflect.ValueOf(node).Kind() == reflect.Ptr && reflect.ValueOf(node).IsNil()) {
		return nil
	}

	switch n := node.(type) {
	case *ast.Program:
		return map[string]interface{}{
			"type":       "Program",
			"statements": walkStatements(n.Statements),
		}

	case *ast.BlockStatement:
		return map[string]interface{}{
			"type":       "BlockStatement",
			"id":         n.ID(),
			"line":       n.Token.Line,
			"statements": walkStatements(n.Statements),
		}

	case *ast.VarStatement:
		return map[string]interface{}{
			"type":        "VarStatement",
			"id":          n.ID(),
			"line":        n.Name.Line,
			"name":        n.Name.Lexeme,
			"initializer": walkExpression(n.Initializer),
		}

	case *ast.FunctionStatement:
		return map[string]interface{}{
			"type":   "FunctionStatement",
			"id":     n.ID(),
			"line":   n.Name.Line,
			"name":   n.Name.Lexeme,
			"getter": n.IsGetter,
			"params": walkTokens(n.Params),
			"body":   walkStatements(n.Body),
		}

	case *ast.ClassStatement:
		methods := make([]interface{}, len(n.Methods))
		for i, m := range n.Methods {
			methods[i] = WalkAST(m)
		}
		classMethods := make([]interface{}, len(n.ClassMethods))
		for i, m := range n.ClassMethods {
			classMethods[i] = WalkAST(m)
		}
		var superclass interface{}
		if n.Superclass != nil {
			superclass = WalkAST(n.Superclass)
		}
		return map[string]interface{}{
			"type":         "ClassStatement",
			"id":           n.ID(),
			"line":         n.Name.Line,
			"name":         n.Name.Lexeme,
			"superclass":   superclass,
			"methods":      methods,
			"classMethods": classMethods,
		}

	case *ast.ExpressionStatement:
		return map[string]interface{}{
			"type":       "ExpressionStatement",
			"id":         n.ID(),
			"expression": walkExpression(n.Expression),
		}

	case *ast.PrintStatement:
		return map[string]interface{}{
			"type":       "PrintStatement",
			"id":         n.ID(),
			"line":       n.Token.Line,
			"expression": walkExpression(n.Expression),
		}

	case *ast.ReturnStatement:
		return map[string]interface{}{
			"type":  "ReturnStatement",
			"id":    n.ID(),
			"line":  n.Keyword.Line,
			"value": walkExpression(n.Value),
		}

	case *ast.BreakStatement:
		return map[string]interface{}{
			"type": "BreakStatement",
			"id":   n.ID(),
			"line": n.Token.Line,
		}

	case *ast.IfStatement:
		return map[string]interface{}{
			"type":       "IfStatement",
			"id":         n.ID(),
			"line":       n.Token.Line,
			"condition":  walkExpression(n.Condition),
			"thenBranch": walkStatement(n.ThenBranch),
			"elseBranch": walkStatement(n.ElseBranch),
		}

	case *ast.WhileStatement:
		return map[string]interface{}{
			"type":      "WhileStatement",
			"id":        n.ID(),
			"line":      n.Token.Line,
			"condition": walkExpression(n.Condition),
			"body":      walkStatement(n.Body),
		}

	case *ast.AssignExpression:
		return map[string]interface{}{
			"type":  "AssignExpression",
			"id":    n.ID(),
			"name":  n.Name.Lexeme,
			"value": walkExpression(n.Value),
		}

	case *ast.BinaryExpression:
		return map[string]interface{}{
			"type":     "BinaryExpression",
			"id":       n.ID(),
			"operator": n.Operator.Lexeme,
			"left":     walkExpression(n.Left),
			"right":    walkExpression(n.Right),
		}

	case *ast.LogicalExpression:
		return map[string]interface{}{
			"type":     "LogicalExpression",
			"id":       n.ID(),
			"operator": n.Operator.Lexeme,
			"left":     walkExpression(n.Left),
			"right":    walkExpression(n.Right),
		}

	case *ast.CommaExpression:
		return map[string]interface{}{
			"type":  "CommaExpression",
			"id":    n.ID(),
			"left":  walkExpression(n.Left),
			"right": walkExpression(n.Right),
		}

	case *ast.TernaryExpression:
		return map[string]interface{}{
			"type":      "TernaryExpression",
			"id":        n.ID(),
			"condition": walkExpression(n.Condition),
			"then":      walkExpression(n.Then),
			"else":      walkExpression(n.Else),
		}

	case *ast.GroupingExpression:
		return map[string]interface{}{
			"type":       "GroupingExpression",
			"id":         n.ID(),
			"expression": walkExpression(n.Expression),
		}

	case *ast.Literal:
		return map[string]interface{}{
			"type":  "Literal",
			"id":    n.ID(),
			"value": n.Value,
		}

	case *ast.UnaryExpression:
		return map[string]interface{}{
			"type":     "UnaryExpression",
			"id":       n.ID(),
			"operator": n.Operator.Lexeme,
			"right":    walkExpression(n.Right),
		}

	case *ast.CallExpression:
		args := make([]interface{}, len(n.Arguments))
		for i, a := range n.Arguments {
			args[i] = walkExpression(a)
		}
		return map[string]interface{}{
			"type":      "CallExpression",
			"id":        n.ID(),
			"line":      n.Paren.Line,
			"callee":    walkExpression(n.Callee),
			"arguments": args,
		}

	case *ast.Identifier:
		return map[string]interface{}{
			"type": "Identifier",
			"id":   n.ID(),
			"name": n.Name.Lexeme,
		}

	case *ast.GetExpression:
		return map[string]interface{}{
			"type":   "GetExpression",
			"id":     n.ID(),
			"object": walkExpression(n.Object),
			"name":   n.Name.Lexeme,
		}

	case *ast.SetExpression:
		return map[string]interface{}{
			"type":   "SetExpression",
			"id":     n.ID(),
			"object": walkExpression(n.Object),
			"name":   n.Name.Lexeme,
			"value":  walkExpression(n.Value),
		}

	case *ast.ThisExpression:
		return map[string]interface{}{
			"type": "ThisExpression",
			"id":   n.ID(),
		}

	case *ast.SuperExpression:
		return map[string]interface{}{
			"type":   "SuperExpression",
			"id":     n.ID(),
			"method": n.Method.Lexeme,
		}

	default:
		return map[string]interface{}{
			"type": "Unknown",
			"node": fmt.Sprintf("%T", n),
		}
	}
}

func walkStatement(s ast.Statement) interface{} {
	if s == nil {
		return nil
	}
	return WalkAST(s)
}

func walkExpression(e ast.Expression) interface{} {
	if e == nil {
		return nil
	}
	return WalkAST(e)
}

func walkStatements(stmts []ast.Statement) []interface{} {
	result := make([]interface{}, len(stmts))
	for i, s := range stmts {
		result[i] = WalkAST(s)
	}
	return result
}

func walkTokens(tokens []token.Token) []interface{} {
	result := make([]interface{}, len(tokens))
	for i, t := range tokens {
		result[i] = t.Lexeme
	}
	return result
}

func RenderASTAsJSON(node ast.Node) (string, error) {
	astMap := WalkAST(node)
	buf := new(bytes.Buffer)
	encoder := json.NewEncoder(buf)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)

	if err := encoder.Encode(astMap); err != nil {
		return "", fmt.Errorf("failed to encode JSON: %v", err)
	}
	return buf.String(), nil
}
