package nao

// Namespace IRIs.
const (
	// Namespace is the NAO (Nepomuk Annotation Ontology) namespace.
	Namespace = "http://www.semanticdesktop.org/ontologies/2007/08/15/nao#"

	// NIENamespace is the NIE (Nepomuk Information Element) namespace.
	NIENamespace = "http://www.semanticdesktop.org/ontologies/2007/01/19/nie#"

	// RDFNamespace is the RDF syntax namespace.
	RDFNamespace = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"

	// RDFSNamespace is the RDF Schema namespace.
	RDFSNamespace = "http://www.w3.org/2000/01/rdf-schema#"

	// XSDNamespace is the XML Schema datatype namespace.
	XSDNamespace = "http://www.w3.org/2001/XMLSchema#"

	// ResourceNamespace is the default prefix for minted resource URIs.
	ResourceNamespace = "nepomuk:/res/"
)

// RDF and RDFS terms.
const (
	// RDFType links a resource to its classes.
	RDFType = RDFNamespace + "type"

	// RDFSResource is the root class every class is compatible with.
	RDFSResource = RDFSNamespace + "Resource"

	// RDFSSubClassOf links a class to a direct superclass.
	RDFSSubClassOf = RDFSNamespace + "subClassOf"

	// RDFSLabel is the generic human readable label.
	RDFSLabel = RDFSNamespace + "label"

	// RDFSComment is the generic description.
	RDFSComment = RDFSNamespace + "comment"
)

// NAO properties.
const (
	// HasTag links a resource to a Tag resource.
	HasTag = Namespace + "hasTag"

	// NumericRating is the 0-10 rating of a resource.
	NumericRating = Namespace + "numericRating"

	// Identifier holds the opaque identifiers a resource was created from.
	Identifier = Namespace + "identifier"

	// PrefLabel is the preferred human readable label.
	PrefLabel = Namespace + "prefLabel"

	// Description is a free text description (user comment).
	Description = Namespace + "description"

	// IsRelated links two related resources.
	IsRelated = Namespace + "isRelated"

	// Created is the creation timestamp.
	Created = Namespace + "created"

	// LastModified is the last modification timestamp.
	LastModified = Namespace + "lastModified"

	// HasSymbol links a resource to a symbol (icon name).
	HasSymbol = Namespace + "hasSymbol"
)

// HasRating is the legacy rating predicate some stores still carry.
const HasRating = Namespace + "hasRating"

// NIE properties.
const (
	// URL is the location of an information element.
	URL = NIENamespace + "url"

	// Title is the title of an information element.
	Title = NIENamespace + "title"
)

// Classes.
const (
	// ClassTag is the class of tag resources.
	ClassTag = Namespace + "Tag"

	// ClassSymbol is the class of symbols.
	ClassSymbol = Namespace + "Symbol"

	// ClassInformationElement is the NIE root class.
	ClassInformationElement = NIENamespace + "InformationElement"

	// ClassDataObject is the NIE class for physical data objects.
	ClassDataObject = NIENamespace + "DataObject"
)

// XSD datatypes used for typed literals.
const (
	XSDString   = XSDNamespace + "string"
	XSDInteger  = XSDNamespace + "integer"
	XSDInt      = XSDNamespace + "int"
	XSDLong     = XSDNamespace + "long"
	XSDDouble   = XSDNamespace + "double"
	XSDDecimal  = XSDNamespace + "decimal"
	XSDBoolean  = XSDNamespace + "boolean"
	XSDDateTime = XSDNamespace + "dateTime"
)
