package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "SMA Timetable API",
        "description": "Weekly timetable editing, generation and substitute cover",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "tags": [
        {
            "name": "Timetable",
            "description": "Week grids, entries and periods"
        },
        {
            "name": "Generator",
            "description": "Automatic week generation"
        },
        {
            "name": "Substitutes",
            "description": "Date-scoped teacher cover"
        },
        {
            "name": "Operations",
            "description": "Runtime metrics"
        }
    ],
    "paths": {
        "/timetable/weeks": {
            "get": {
                "tags": [
                    "Timetable"
                ],
                "summary": "Get a class-section week",
                "parameters": [
                    {
                        "name": "classId",
                        "in": "query",
                        "type": "string",
                        "required": true
                    },
                    {
                        "name": "section",
                        "in": "query",
                        "type": "string",
                        "required": true
                    },
                    {
                        "name": "weekStart",
                        "in": "query",
                        "type": "string",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/timetable/weeks/conflicts": {
            "get": {
                "tags": [
                    "Timetable"
                ],
                "summary": "List conflicts touching a week",
                "parameters": [
                    {
                        "name": "classId",
                        "in": "query",
                        "type": "string",
                        "required": true
                    },
                    {
                        "name": "section",
                        "in": "query",
                        "type": "string",
                        "required": true
                    },
                    {
                        "name": "weekStart",
                        "in": "query",
                        "type": "string",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/timetable/weeks/publish": {
            "post": {
                "tags": [
                    "Timetable"
                ],
                "summary": "Publish or unpublish a week",
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/PublishWeekRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/timetable/entries": {
            "post": {
                "tags": [
                    "Timetable"
                ],
                "summary": "Create a schedule entry",
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/CreateEntryRequest"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/timetable/entries/{id}": {
            "patch": {
                "tags": [
                    "Timetable"
                ],
                "summary": "Update a schedule entry",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "type": "string",
                        "required": true
                    },
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/UpdateEntryRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            },
            "delete": {
                "tags": [
                    "Timetable"
                ],
                "summary": "Delete a schedule entry",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "type": "string",
                        "required": true
                    }
                ],
                "responses": {
                    "204": {
                        "description": "No Content"
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/timetable/entries/swap": {
            "post": {
                "tags": [
                    "Timetable"
                ],
                "summary": "Swap two entries of the same week",
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/SwapEntriesRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/timetable/classes/{classId}/periods": {
            "get": {
                "tags": [
                    "Timetable"
                ],
                "summary": "List periods of a class",
                "parameters": [
                    {
                        "name": "classId",
                        "in": "path",
                        "type": "string",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            },
            "put": {
                "tags": [
                    "Timetable"
                ],
                "summary": "Replace periods of a class",
                "parameters": [
                    {
                        "name": "classId",
                        "in": "path",
                        "type": "string",
                        "required": true
                    },
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/SetPeriodsRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/timetable/generate": {
            "post": {
                "tags": [
                    "Generator"
                ],
                "summary": "Generate a week",
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/GenerateTimetableRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/timetable/generate/proposals/{id}/apply": {
            "post": {
                "tags": [
                    "Generator"
                ],
                "summary": "Commit a previewed proposal",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "type": "string",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/timetable/generate/jobs": {
            "post": {
                "tags": [
                    "Generator"
                ],
                "summary": "Queue a generation job",
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/GenerateTimetableRequest"
                        }
                    }
                ],
                "responses": {
                    "202": {
                        "description": "Accepted",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/timetable/generate/jobs/{id}": {
            "get": {
                "tags": [
                    "Generator"
                ],
                "summary": "Get a generation job",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "type": "string",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            },
            "delete": {
                "tags": [
                    "Generator"
                ],
                "summary": "Cancel a generation job",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "type": "string",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/timetable/substitutes/available": {
            "get": {
                "tags": [
                    "Substitutes"
                ],
                "summary": "Rank teachers who could cover a lesson",
                "parameters": [
                    {
                        "name": "date",
                        "in": "query",
                        "type": "string",
                        "required": true
                    },
                    {
                        "name": "day",
                        "in": "query",
                        "type": "string",
                        "required": true
                    },
                    {
                        "name": "periodNo",
                        "in": "query",
                        "type": "integer",
                        "required": true
                    },
                    {
                        "name": "excludeTeacherId",
                        "in": "query",
                        "type": "string",
                        "required": false
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/timetable/substitutes": {
            "get": {
                "tags": [
                    "Substitutes"
                ],
                "summary": "List substitute assignments on a date",
                "parameters": [
                    {
                        "name": "date",
                        "in": "query",
                        "type": "string",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            },
            "post": {
                "tags": [
                    "Substitutes"
                ],
                "summary": "Assign a substitute teacher",
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/AssignSubstituteRequest"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/timetable/substitutes/lookup": {
            "get": {
                "tags": [
                    "Substitutes"
                ],
                "summary": "Find the substitute for one lesson occurrence",
                "parameters": [
                    {
                        "name": "date",
                        "in": "query",
                        "type": "string",
                        "required": true
                    },
                    {
                        "name": "entryId",
                        "in": "query",
                        "type": "string",
                        "required": false
                    },
                    {
                        "name": "classId",
                        "in": "query",
                        "type": "string",
                        "required": false
                    },
                    {
                        "name": "section",
                        "in": "query",
                        "type": "string",
                        "required": false
                    },
                    {
                        "name": "day",
                        "in": "query",
                        "type": "string",
                        "required": false
                    },
                    {
                        "name": "periodNo",
                        "in": "query",
                        "type": "integer",
                        "required": false
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/timetable/substitutes/{entryId}/{date}": {
            "delete": {
                "tags": [
                    "Substitutes"
                ],
                "summary": "Remove a substitute assignment",
                "parameters": [
                    {
                        "name": "entryId",
                        "in": "path",
                        "type": "string",
                        "required": true
                    },
                    {
                        "name": "date",
                        "in": "path",
                        "type": "string",
                        "required": true
                    }
                ],
                "responses": {
                    "204": {
                        "description": "No Content"
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/timetable/metrics": {
            "get": {
                "tags": [
                    "Operations"
                ],
                "summary": "Metrics summary",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        }
    },
    "definitions": {
        "CreateEntryRequest": {
            "type": "object",
            "properties": {
                "academicYearId": {
                    "type": "string"
                },
                "classId": {
                    "type": "string"
                },
                "section": {
                    "type": "string"
                },
                "weekStart": {
                    "type": "string"
                },
                "day": {
                    "type": "string"
                },
                "periodNo": {
                    "type": "integer"
                },
                "subjectId": {
                    "type": "string"
                },
                "teacherId": {
                    "type": "string"
                },
                "roomId": {
                    "type": "string"
                },
                "isEditable": {
                    "type": "boolean"
                }
            },
            "required": [
                "classId",
                "section",
                "weekStart",
                "day",
                "periodNo",
                "subjectId",
                "teacherId"
            ]
        },
        "UpdateEntryRequest": {
            "type": "object",
            "properties": {
                "day": {
                    "type": "string"
                },
                "periodNo": {
                    "type": "integer"
                },
                "subjectId": {
                    "type": "string"
                },
                "teacherId": {
                    "type": "string"
                },
                "roomId": {
                    "type": "string"
                },
                "clearRoom": {
                    "type": "boolean"
                },
                "isEditable": {
                    "type": "boolean"
                }
            }
        },
        "SwapEntriesRequest": {
            "type": "object",
            "properties": {
                "entryA": {
                    "type": "string"
                },
                "entryB": {
                    "type": "string"
                }
            },
            "required": [
                "entryA",
                "entryB"
            ]
        },
        "PublishWeekRequest": {
            "type": "object",
            "properties": {
                "classId": {
                    "type": "string"
                },
                "section": {
                    "type": "string"
                },
                "weekStart": {
                    "type": "string"
                },
                "publish": {
                    "type": "boolean"
                }
            },
            "required": [
                "classId",
                "section",
                "weekStart"
            ]
        },
        "SetPeriodsRequest": {
            "type": "object",
            "properties": {
                "periods": {
                    "type": "array",
                    "items": {
                        "type": "object",
                        "properties": {
                            "periodNo": {
                                "type": "integer"
                            },
                            "startTime": {
                                "type": "string"
                            },
                            "endTime": {
                                "type": "string"
                            }
                        }
                    }
                }
            },
            "required": [
                "periods"
            ]
        },
        "GenerateTimetableRequest": {
            "type": "object",
            "properties": {
                "academicYearId": {
                    "type": "string"
                },
                "classId": {
                    "type": "string"
                },
                "section": {
                    "type": "string"
                },
                "weekStart": {
                    "type": "string"
                },
                "days": {
                    "type": "array",
                    "items": {
                        "type": "string"
                    }
                },
                "periodsPerDay": {
                    "type": "integer"
                },
                "subjects": {
                    "type": "array",
                    "items": {
                        "type": "object",
                        "properties": {
                            "subjectId": {
                                "type": "string"
                            },
                            "subjectName": {
                                "type": "string"
                            },
                            "weeklyPeriods": {
                                "type": "integer"
                            },
                            "isCore": {
                                "type": "boolean"
                            },
                            "requiresRoom": {
                                "type": "boolean"
                            },
                            "roomKind": {
                                "type": "string"
                            },
                            "teacherIds": {
                                "type": "array",
                                "items": {
                                    "type": "string"
                                }
                            }
                        }
                    }
                },
                "constraints": {
                    "type": "object",
                    "properties": {
                        "maxClassesPerDay": {
                            "type": "integer"
                        },
                        "maxClassesPerWeek": {
                            "type": "integer"
                        },
                        "minClassesPerDay": {
                            "type": "integer"
                        },
                        "minClassesPerWeek": {
                            "type": "integer"
                        },
                        "prioritizeCoreSubjects": {
                            "type": "boolean"
                        },
                        "coreSubjectNames": {
                            "type": "array",
                            "items": {
                                "type": "string"
                            }
                        }
                    }
                },
                "customConstraints": {
                    "type": "array",
                    "items": {
                        "type": "object",
                        "properties": {
                            "description": {
                                "type": "string"
                            },
                            "priority": {
                                "type": "integer"
                            }
                        }
                    }
                },
                "lockEntries": {
                    "type": "boolean"
                },
                "commit": {
                    "type": "boolean"
                },
                "confirmReplace": {
                    "type": "boolean"
                }
            },
            "required": [
                "classId",
                "section",
                "weekStart"
            ]
        },
        "AssignSubstituteRequest": {
            "type": "object",
            "properties": {
                "entryId": {
                    "type": "string"
                },
                "date": {
                    "type": "string"
                },
                "day": {
                    "type": "string"
                },
                "periodNo": {
                    "type": "integer"
                },
                "classId": {
                    "type": "string"
                },
                "section": {
                    "type": "string"
                },
                "absentTeacherId": {
                    "type": "string"
                },
                "substituteTeacherId": {
                    "type": "string"
                },
                "reason": {
                    "type": "string"
                }
            },
            "required": [
                "entryId",
                "date",
                "day",
                "periodNo",
                "absentTeacherId",
                "substituteTeacherId"
            ]
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {
                    "type": "string"
                },
                "message": {
                    "type": "string"
                },
                "status": {
                    "type": "integer"
                }
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {
                    "type": "object"
                },
                "error": {
                    "$ref": "#/definitions/APIError"
                },
                "meta": {
                    "type": "object"
                }
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
