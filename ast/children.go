package ast

// Children returns the direct children of a node in canonical (leftmost
// first) order. It is the single source of truth for tree shape, used by
// both post-processing (this package) and the visitor package's generic
// Walk/Rewrite, mirroring the contract every Node subclass upholds via
// visitChildren in the original C++ (Node::ChildVisitor).
func Children(n Node) []Node {
	switch v := n.(type) {
	case *Literal, *Parameter, *Variable, *RawSQL:
		return nil
	case *MetaNode:
		return nil
	case *Property:
		if v.ExtraArg != nil {
			return []Node{v.ExtraArg}
		}
		return nil
	case *CollateExpr:
		return []Node{v.Inner}
	case *Op:
		out := make([]Node, 0, len(v.Operands)+2+len(v.Whens)*2)
		if v.CaseOperand != nil {
			out = append(out, v.CaseOperand)
		}
		for _, w := range v.Whens {
			out = append(out, w.Cond, w.Result)
		}
		if v.Else != nil {
			out = append(out, v.Else)
		}
		for _, o := range v.Operands {
			out = append(out, o)
		}
		return out
	case *AnyEvery:
		return []Node{v.Collection, v.Predicate}
	case *FunctionCall:
		out := make([]Node, len(v.Args))
		for i, a := range v.Args {
			out[i] = a
		}
		return out
	case *Match:
		return []Node{v.IndexProperty, v.Text}
	case *Rank:
		return []Node{v.IndexProperty}
	case *VectorDistance:
		out := []Node{v.VectorExpr, v.Query}
		if v.NumProbes != nil {
			out = append(out, v.NumProbes)
		}
		return out
	case *What:
		return []Node{v.Expression}
	case *Source:
		out := []Node{}
		if v.JoinOn != nil {
			out = append(out, v.JoinOn)
		}
		if v.Unnest != nil {
			out = append(out, v.Unnest)
		}
		return out
	case *Select:
		out := make([]Node, 0, len(v.What)+len(v.Sources)+len(v.GroupBy)+len(v.OrderBy)+4)
		for _, w := range v.What {
			out = append(out, w)
		}
		for _, s := range v.Sources {
			out = append(out, s)
		}
		if v.Where != nil {
			out = append(out, v.Where)
		}
		for _, g := range v.GroupBy {
			out = append(out, g)
		}
		if v.Having != nil {
			out = append(out, v.Having)
		}
		for _, o := range v.OrderBy {
			out = append(out, o.Expr)
		}
		if v.Limit != nil {
			out = append(out, v.Limit)
		}
		if v.Offset != nil {
			out = append(out, v.Offset)
		}
		return out
	case *Query:
		return []Node{v.Select}
	default:
		return nil
	}
}
