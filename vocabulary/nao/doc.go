// Package nao provides the semantic desktop vocabulary used by semres.
//
// Resources are stored as RDF statements whose predicates are full IRIs from the
// NAO (annotation), NIE (information element), RDF and RDFS namespaces. Those IRIs
// are a wire contract with every store that already holds data: renaming one is a
// breaking change.
//
// # Semstreams Integration
//
// Every IRI used as a resource property also has a dotted predicate name
// (domain.category.property) registered with the semstreams vocabulary registry
// in init(). The graph publisher uses the dotted names when forwarding synced
// resources to the knowledge graph:
//
//	nao.resource.rating  -> http://www.semanticdesktop.org/ontologies/2007/08/15/nao#numericRating
//	nao.resource.has_tag -> http://www.semanticdesktop.org/ontologies/2007/08/15/nao#hasTag
//
// Use DottedName and IRIForPredicate to translate between the two forms.
package nao
