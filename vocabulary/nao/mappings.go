package nao

// PredicateIRIMap maps dotted predicate names to their IRIs.
var PredicateIRIMap = map[string]string{
	PredicateType:         RDFType,
	PredicateLabel:        RDFSLabel,
	PredicateComment:      RDFSComment,
	PredicateSubClassOf:   RDFSSubClassOf,
	PredicateHasTag:       HasTag,
	PredicateRating:       NumericRating,
	PredicateLegacyRating: HasRating,
	PredicateIdentifier:   Identifier,
	PredicatePrefLabel:    PrefLabel,
	PredicateDescription:  Description,
	PredicateIsRelated:    IsRelated,
	PredicateCreated:      Created,
	PredicateLastModified: LastModified,
	PredicateHasSymbol:    HasSymbol,
	PredicateURL:          URL,
	PredicateTitle:        Title,
}

var iriPredicateMap = func() map[string]string {
	m := make(map[string]string, len(PredicateIRIMap))
	for name, iri := range PredicateIRIMap {
		m[iri] = name
	}
	return m
}()

// IRIForPredicate returns the IRI for a dotted predicate name. Names without a
// mapping are returned unchanged, so callers can pass IRIs through.
func IRIForPredicate(name string) string {
	if iri, ok := PredicateIRIMap[name]; ok {
		return iri
	}
	return name
}

// DottedName returns the dotted predicate name registered for an IRI.
func DottedName(iri string) (string, bool) {
	name, ok := iriPredicateMap[iri]
	return name, ok
}

// Prefixes maps the conventional prefixes to namespaces for serialisation.
var Prefixes = map[string]string{
	"rdf":  RDFNamespace,
	"rdfs": RDFSNamespace,
	"xsd":  XSDNamespace,
	"nao":  Namespace,
	"nie":  NIENamespace,
}
